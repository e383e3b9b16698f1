package issuance

import (
	"stocktransfer-backend/internal/application/payments"
	"stocktransfer-backend/internal/domain"
)

// Outcome is the result of IssueShares: exactly one of Completed,
// PaymentRequired or Failed.
type Outcome interface {
	IssuanceRequest() *domain.ShareIssuanceRequest
	isOutcome()
}

// Completed means shares exist now.
type Completed struct {
	Request     *domain.ShareIssuanceRequest
	Holding     *domain.Holding
	Certificate *domain.Certificate
	Notified    bool
}

// PaymentRequired means no shares exist until the checkout session is paid.
type PaymentRequired struct {
	Request *domain.ShareIssuanceRequest
	Session *payments.CheckoutSession
}

// Failed means the request was recorded and abandoned.
type Failed struct {
	Request *domain.ShareIssuanceRequest
	Reason  string
}

func (o Completed) IssuanceRequest() *domain.ShareIssuanceRequest       { return o.Request }
func (o PaymentRequired) IssuanceRequest() *domain.ShareIssuanceRequest { return o.Request }
func (o Failed) IssuanceRequest() *domain.ShareIssuanceRequest          { return o.Request }

func (Completed) isOutcome()       {}
func (PaymentRequired) isOutcome() {}
func (Failed) isOutcome()          {}

// ReconcileAction says what ReconcilePayment did with an event.
type ReconcileAction string

const (
	ReconcileCompleted ReconcileAction = "completed"
	ReconcileDuplicate ReconcileAction = "duplicate"
	ReconcileRejected  ReconcileAction = "rejected"
	ReconcileIgnored   ReconcileAction = "ignored"
)

// Failure reasons written to ShareIssuanceRequest.Notes.
const (
	ReasonSessionMismatch = "Session ID mismatch"
	ReasonAmountMismatch  = "Amount mismatch"
	ReasonNotPaid         = "Payment not confirmed"
)

// ReconcileResult describes one ReconcilePayment call.
type ReconcileResult struct {
	Action    ReconcileAction
	Reason    string
	Request   *domain.ShareIssuanceRequest
	HoldingID string
}
