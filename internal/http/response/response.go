package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/marketplace-backend/internal/domain/aggregates"
	"github.com/yungbote/marketplace-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Entity  string `json:"entity,omitempty"`
	ID      string `json:"id,omitempty"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// PartialEnvelope reports a step sequence that committed only a prefix.
type PartialEnvelope struct {
	Error     APIError `json:"error"`
	Completed []string `json:"completed"`
	Failed    string   `json:"failed"`
	Result    any      `json:"result,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// StatusFor maps an aggregate error code onto an HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeReferenceMismatch:
		return http.StatusForbidden
	case domainagg.CodeDuplicateName, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	case domainagg.CodePartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// RespondFailure writes err using the status carried by an apierr.Error, a
// PartialFailure or an aggregate error code, falling back to fallbackCode/500.
func RespondFailure(c *gin.Context, fallbackCode string, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		c.JSON(ae.Status, ErrorEnvelope{Error: APIError{
			Message: ae.Error(),
			Code:    ae.Code,
			Details: ae.Details,
		}})
		return
	}
	if pf, ok := domainagg.AsPartialFailure(err); ok {
		c.JSON(http.StatusMultiStatus, PartialEnvelope{
			Error: APIError{
				Message: pf.Error(),
				Code:    string(domainagg.CodePartialFailure),
			},
			Completed: pf.Completed,
			Failed:    pf.Failed,
			Result:    pf.Result,
		})
		return
	}
	if aggErr, ok := domainagg.AsError(err); ok {
		status := StatusFor(aggErr.Code)
		msg := aggErr.Error()
		if status == http.StatusInternalServerError {
			// Infrastructure detail stays in the logs.
			msg = http.StatusText(status)
		}
		c.JSON(status, ErrorEnvelope{Error: APIError{
			Message: msg,
			Code:    string(aggErr.Code),
			Entity:  aggErr.Entity,
			ID:      aggErr.ID,
		}})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{
		Message: http.StatusText(http.StatusInternalServerError),
		Code:    fallbackCode,
	}})
}
