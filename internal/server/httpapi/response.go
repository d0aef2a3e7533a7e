package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/wire"
)

// RespondError writes the error envelope and aborts the chain.
func RespondError(c *gin.Context, status int, code string, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, wire.ErrorEnvelope{Error: wire.APIError{Message: msg, Code: code}})
}

// RespondOK writes payload as JSON with 200.
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondErr maps service errors onto HTTP statuses. Unknown errors become a
// bare 500; their text only goes to the log.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, validationMessage(err))
	case errors.Is(err, errs.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, wire.CodeUnauthorized, "bad credentials")
	case errors.Is(err, errs.ErrForbidden):
		RespondError(c, http.StatusForbidden, wire.CodeForbidden, "forbidden")
	case errors.Is(err, errs.ErrNotEnrolled):
		RespondError(c, http.StatusForbidden, wire.CodeNotEnrolled, "not enrolled in this course")
	case errors.Is(err, errs.ErrNoAccessCode):
		RespondError(c, http.StatusNotFound, wire.CodeNoAccessCode, "no access code configured")
	case errors.Is(err, errs.ErrNotFound):
		RespondError(c, http.StatusNotFound, wire.CodeNotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		RespondError(c, http.StatusConflict, wire.CodeConflict, "already exists")
	case errors.Is(err, errs.ErrRateLimited):
		RespondError(c, http.StatusTooManyRequests, wire.CodeRateLimited, "too many attempts, try again later")
	default:
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, wire.CodeInternal, "internal error")
	}
}

// validationMessage strips the sentinel prefix from "validation: <detail>".
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, errs.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(errs.ErrValidation.Error())+2:]
	}
	return msg
}
