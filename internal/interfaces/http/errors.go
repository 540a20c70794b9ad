package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/form"
)

var (
	ErrConfirmationRequired = errors.New("destructive action requires confirm=true")
	ErrInvalidIfMatch       = errors.New("If-Match must be a draft version")
	ErrInvalidIndex         = errors.New("index must be a non-negative integer")
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var (
		verr     *entity.ValidationError
		notFound *entity.NotFoundError
		conflict *entity.ConflictError
		perr     *entity.PersistenceError
		nerr     *entity.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound), errors.Is(err, entity.ErrUnknownReportType):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &nerr):
		return http.StatusBadGateway
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable
	case errors.Is(err, form.ErrPhotoTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, entity.ErrUnknownSection),
		errors.Is(err, entity.ErrUnknownField),
		errors.Is(err, entity.ErrUnknownScope),
		errors.Is(err, entity.ErrIndexOutOfRange),
		errors.Is(err, entity.ErrNotArrayField),
		errors.Is(err, entity.ErrNotImage),
		errors.Is(err, entity.ErrInvalidDataURI),
		errors.Is(err, form.ErrEmptyPhoto),
		errors.Is(err, form.ErrPDFNoPages),
		errors.Is(err, form.ErrSubFieldPath),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrInvalidIfMatch),
		errors.Is(err, ErrInvalidIndex):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the response envelope. Validation failures
// carry the offending fields as data.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path, "status", status)
	}

	resp := Response{Success: false, Error: err.Error()}
	var verr *entity.ValidationError
	if errors.As(err, &verr) {
		resp.Data = verr.Fields
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// ifMatch reads an optional If-Match header holding a draft version, quoted
// or bare. Zero means no precondition.
func ifMatch(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIfMatch, c.GetHeader("If-Match"))
	}
	return v, nil
}

func indexParam(c *gin.Context) (int, error) {
	v, err := strconv.Atoi(c.Param("index"))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, c.Param("index"))
	}
	return v, nil
}
