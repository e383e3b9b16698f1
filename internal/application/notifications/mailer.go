package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"stocktransfer-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Notifier tells a shareholder that shares were recorded in their name.
// It reports whether a message was handed to the mail provider.
type Notifier interface {
	SendShareUpdateOrInvitation(ctx context.Context, holder *domain.Shareholder, issuer *domain.Issuer, additional, total decimal.Decimal) (bool, error)
}

// Sender is the transport the Mailer writes through. BrevoClient implements it.
type Sender interface {
	Send(ctx context.Context, toEmail, toName, subject, contentHTML string) error
}

// Mailer sends a share update to shareholders with a portal account and an
// invitation, carrying a signed token, to those without one.
type Mailer struct {
	Sender        Sender
	Invites       *InviteSigner
	PortalBaseURL string
}

func (m *Mailer) portal() string {
	if m.PortalBaseURL == "" {
		return "http://localhost:3000"
	}
	return strings.TrimRight(m.PortalBaseURL, "/")
}

func (m *Mailer) SendShareUpdateOrInvitation(ctx context.Context, holder *domain.Shareholder, issuer *domain.Issuer, additional, total decimal.Decimal) (bool, error) {
	if m == nil || m.Sender == nil {
		return false, nil
	}
	if holder == nil || issuer == nil {
		return false, errors.New("shareholder and issuer are required")
	}
	if strings.TrimSpace(holder.Email) == "" {
		return false, nil
	}
	if b, ok := m.Sender.(*BrevoClient); ok && !b.Enabled() {
		log.Warn().Str("shareholder_id", holder.ShareholderID.String()).Msg("SENDINBLUE_API_KEY not set; skipping shareholder email")
		return false, nil
	}

	if holder.HasAccount() {
		subject := fmt.Sprintf("Your %s shareholding has been updated", issuer.Name)
		content := shareUpdateContent(holder.FullName, issuer.Name, additional.String(), total.String(), m.portal()+"/holdings")
		if err := m.Sender.Send(ctx, holder.Email, holder.FullName, subject, content); err != nil {
			return false, err
		}
		return true, nil
	}

	if m.Invites == nil {
		return false, errors.New("invitation signer not configured")
	}
	token, expires, err := m.Invites.Sign(InviteClaims{
		TenantID:      holder.TenantID.String(),
		ShareholderID: holder.ShareholderID.String(),
		IssuerID:      issuer.IssuerID.String(),
		Email:         strings.ToLower(holder.Email),
	})
	if err != nil {
		return false, err
	}
	link := m.portal() + "/invite?token=" + url.QueryEscape(token)
	subject := fmt.Sprintf("You have been issued shares of %s", issuer.Name)
	content := invitationContent(holder.FullName, issuer.Name, total.String(), link, expires)
	if err := m.Sender.Send(ctx, holder.Email, holder.FullName, subject, content); err != nil {
		return false, err
	}
	return true, nil
}
