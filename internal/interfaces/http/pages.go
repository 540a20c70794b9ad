package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/review"
)

// ReviewPage handles GET /reports/:type/review/:id
func (h *Handlers) ReviewPage(c *gin.Context) {
	view, err := h.reviews.View(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	status := http.StatusOK
	if !view.Found {
		status = http.StatusNotFound
	}
	h.renderPage(c, status, view)
}

// SubmitPage handles the review page's submit form. Success redirects to the
// drafts list; failure re-renders the review with the reason.
func (h *Handlers) SubmitPage(c *gin.Context) {
	reportType, id := c.Param("type"), c.Param("id")

	result, err := h.reviews.Submit(c.Request.Context(), reportType, id, 0)
	if err == nil {
		c.Redirect(http.StatusSeeOther, result.RedirectURL)
		return
	}

	view, verr := h.reviews.View(c.Request.Context(), reportType, id)
	if verr != nil || !view.Found {
		h.renderError(c, err)
		return
	}
	view.Message = submitFailureMessage(err)
	h.renderPage(c, statusFor(err), view)
}

func submitFailureMessage(err error) string {
	var (
		verr *entity.ValidationError
		nerr *entity.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		msg := "Please complete the required fields:"
		for _, f := range verr.Fields {
			label := f.Label
			if label == "" {
				label = f.Field
			}
			msg += " " + label + ";"
		}
		return msg
	case errors.As(err, &nerr):
		return "The report could not be sent. Your draft is saved; please try again."
	default:
		return "The report could not be submitted."
	}
}

func (h *Handlers) renderPage(c *gin.Context, status int, view review.View) {
	// the page form posts back to this server rather than the app route
	if view.Actions.Submit != nil {
		submit := *view.Actions.Submit
		submit.URL = "/reports/" + c.Param("type") + "/review/" + c.Param("id") + "/submit"
		view.Actions.Submit = &submit
	}

	var buf bytes.Buffer
	if err := h.pages.Render(&buf, view); err != nil {
		h.logger.Error("Failed to render review page", "error", err, "report_type", view.ReportType, "draft_id", view.DraftID)
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handlers) renderError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path, "status", status)
	}
	c.String(status, http.StatusText(status))
}
