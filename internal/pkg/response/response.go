package response

import (
	"errors"

	"stocktransfer-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Accepted sends a 202 response for work that finishes later, such as a pending payment.
func Accepted(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusAccepted).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

var ledgerStatus = map[ledger.Kind]int{
	ledger.KindValidation:           fiber.StatusBadRequest,
	ledger.KindPaymentNotConfigured: fiber.StatusBadRequest,
	ledger.KindNotFound:             fiber.StatusNotFound,
	ledger.KindConflict:             fiber.StatusConflict,
	ledger.KindAlreadyExecuted:      fiber.StatusConflict,
	ledger.KindInsufficientShares:   fiber.StatusUnprocessableEntity,
	ledger.KindPaymentProvider:      fiber.StatusBadGateway,
	ledger.KindIntegrity:            fiber.StatusInternalServerError,
	ledger.KindInternal:             fiber.StatusInternalServerError,
}

// StatusFor returns the HTTP status for a ledger error kind.
func StatusFor(kind ledger.Kind) int {
	if code, ok := ledgerStatus[kind]; ok {
		return code
	}
	return fiber.StatusInternalServerError
}

// LedgerError renders err with its kind in details. Errors that are not
// *ledger.Error, and server-side kinds, are logged and hidden behind a
// generic message.
func LedgerError(c *fiber.Ctx, err error) error {
	var le *ledger.Error
	if !errors.As(err, &le) {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		return Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	code := StatusFor(le.Kind)
	message := le.Message
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Str("kind", string(le.Kind)).Msg("ledger error")
		message = "Internal Server Error"
	}
	return Error(c, message, code, map[string]interface{}{"kind": le.Kind})
}
