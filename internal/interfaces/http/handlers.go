package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/field-reports/internal/application/service"
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/review"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	drafts  service.DraftService
	reviews service.ReviewService
	pages   *review.HTMLRenderer
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	drafts service.DraftService,
	reviews service.ReviewService,
	pages *review.HTMLRenderer,
	logger Logger,
) *Handlers {
	return &Handlers{
		drafts:  drafts,
		reviews: reviews,
		pages:   pages,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SchemaSummary is one entry of the schemas list
type SchemaSummary struct {
	ReportType        string `json:"reportType"`
	Title             string `json:"title"`
	RequiresSignature bool   `json:"requiresSignature"`
	RequiresPhotos    bool   `json:"requiresPhotos"`
	EditPath          string `json:"editPath"`
	ReviewPath        string `json:"reviewPath"`
	DraftsPath        string `json:"draftsPath"`
}

// FieldsRequest is the body of PATCH .../fields
type FieldsRequest struct {
	Edits []service.FieldEdit `json:"edits" binding:"required,dive"`
}

// SignatureRequest is the body of PUT .../signature
type SignatureRequest struct {
	Signature string `json:"signature" binding:"required"`
	SigDate   string `json:"sigDate"`
}

// IndexResponse reports the index of an added row, item or photo
type IndexResponse struct {
	Index int           `json:"index"`
	Draft *entity.Draft `json:"draft"`
}

// RemoveRowResponse reports whether a section row was removed
type RemoveRowResponse struct {
	Removed bool          `json:"removed"`
	Draft   *entity.Draft `json:"draft"`
}

// ValidateResponse lists the empty required fields
type ValidateResponse struct {
	Valid  bool                `json:"valid"`
	Fields []entity.FieldError `json:"fields,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ListSchemas handles GET /api/v1/schemas
func (h *Handlers) ListSchemas(c *gin.Context) {
	schemas := h.drafts.Schemas()
	out := make([]SchemaSummary, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, SchemaSummary{
			ReportType:        s.ReportType,
			Title:             s.Title,
			RequiresSignature: s.RequiresSignature,
			RequiresPhotos:    s.RequiresPhotos,
			EditPath:          s.EditPath,
			ReviewPath:        s.ReviewPath,
			DraftsPath:        s.DraftsPath,
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetSchema handles GET /api/v1/schemas/:type
func (h *Handlers) GetSchema(c *gin.Context) {
	s, err := h.drafts.Schema(c.Param("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: s})
}

// BlankDraft handles GET /api/v1/reports/:type/blank
func (h *Handlers) BlankDraft(c *gin.Context) {
	d, err := h.drafts.Blank(c.Param("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: d})
}

// ListDrafts handles GET /api/v1/reports/:type/drafts
func (h *Handlers) ListDrafts(c *gin.Context) {
	list, err := h.drafts.List(c.Request.Context(), c.Param("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: list})
}

// CreateDraft handles POST /api/v1/reports/:type/drafts. An empty body
// creates a blank draft.
func (h *Handlers) CreateDraft(c *gin.Context) {
	var initial *entity.Draft
	var body entity.Draft
	switch err := c.ShouldBindJSON(&body); {
	case err == nil:
		initial = &body
	case errors.Is(err, io.EOF):
	default:
		badRequest(c, "invalid draft body")
		return
	}

	d, err := h.drafts.Create(c.Request.Context(), c.Param("type"), initial)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusCreated, d)
}

// GetDraft handles GET /api/v1/reports/:type/drafts/:id
func (h *Handlers) GetDraft(c *gin.Context) {
	d, err := h.drafts.Get(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// ReplaceDraft handles PUT /api/v1/reports/:type/drafts/:id
func (h *Handlers) ReplaceDraft(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var body entity.Draft
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid draft body")
		return
	}

	d, err := h.drafts.Replace(c.Request.Context(), c.Param("type"), c.Param("id"), &body, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// DeleteDraft handles DELETE /api/v1/reports/:type/drafts/:id?confirm=true
func (h *Handlers) DeleteDraft(c *gin.Context) {
	if confirmed, _ := strconv.ParseBool(c.Query("confirm")); !confirmed {
		h.respondError(c, ErrConfirmationRequired)
		return
	}
	if err := h.drafts.Delete(c.Request.Context(), c.Param("type"), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// SetFields handles PATCH /api/v1/reports/:type/drafts/:id/fields
func (h *Handlers) SetFields(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req FieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid field edits")
		return
	}

	d, err := h.drafts.ApplyEdits(c.Request.Context(), c.Param("type"), c.Param("id"), req.Edits, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// AddSectionRow handles POST .../sections/:section/rows
func (h *Handlers) AddSectionRow(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, index, err := h.drafts.AddSectionRow(c.Request.Context(), c.Param("type"), c.Param("id"), c.Param("section"), version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	setETag(c, d)
	c.JSON(http.StatusCreated, Response{Success: true, Data: IndexResponse{Index: index, Draft: d}})
}

// RemoveSectionRow handles DELETE .../sections/:section/rows/:index
func (h *Handlers) RemoveSectionRow(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	index, err := indexParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, removed, err := h.drafts.RemoveSectionRow(c.Request.Context(), c.Param("type"), c.Param("id"), c.Param("section"), index, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	setETag(c, d)
	c.JSON(http.StatusOK, Response{Success: true, Data: RemoveRowResponse{Removed: removed, Draft: d}})
}

// AddArrayItem handles POST .../arrays/:field/items
func (h *Handlers) AddArrayItem(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, index, err := h.drafts.AddArrayItem(c.Request.Context(), c.Param("type"), c.Param("id"), c.Param("field"), version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	setETag(c, d)
	c.JSON(http.StatusCreated, Response{Success: true, Data: IndexResponse{Index: index, Draft: d}})
}

// RemoveArrayItem handles DELETE .../arrays/:field/items/:index
func (h *Handlers) RemoveArrayItem(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	index, err := indexParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.drafts.RemoveArrayItem(c.Request.Context(), c.Param("type"), c.Param("id"), c.Param("field"), index, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// AddPhoto handles POST .../photos with a multipart "file" part
func (h *Handlers) AddPhoto(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		badRequest(c, "failed to read upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "failed to read upload")
		return
	}

	in := form.PhotoInput{
		Name:        file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}
	if raw := c.PostForm("capturedAt"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, fmt.Sprintf("capturedAt must be RFC 3339: %q", raw))
			return
		}
		in.CapturedAt = t
	}

	d, index, err := h.drafts.AddPhoto(c.Request.Context(), c.Param("type"), c.Param("id"), in, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	setETag(c, d)
	c.JSON(http.StatusCreated, Response{Success: true, Data: IndexResponse{Index: index, Draft: d}})
}

// RemovePhoto handles DELETE .../photos/:index
func (h *Handlers) RemovePhoto(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	index, err := indexParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.drafts.RemovePhoto(c.Request.Context(), c.Param("type"), c.Param("id"), index, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// SetSignature handles PUT .../signature
func (h *Handlers) SetSignature(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "signature is required")
		return
	}
	if _, _, err := entity.DecodeDataURI(req.Signature); err != nil {
		h.respondError(c, err)
		return
	}

	d, err := h.drafts.SetSignature(c.Request.Context(), c.Param("type"), c.Param("id"), req.Signature, req.SigDate, version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// ClearSignature handles DELETE .../signature
func (h *Handlers) ClearSignature(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.drafts.ClearSignature(c.Request.Context(), c.Param("type"), c.Param("id"), version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondDraft(c, http.StatusOK, d)
}

// ValidateDraft handles POST .../validate. An incomplete draft is a
// successful call reporting valid=false.
func (h *Handlers) ValidateDraft(c *gin.Context) {
	err := h.drafts.Validate(c.Request.Context(), c.Param("type"), c.Param("id"))
	var verr *entity.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusOK, Response{Success: true, Data: ValidateResponse{Valid: false, Fields: verr.Fields}})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ValidateResponse{Valid: true}})
}

// ReviewDraft handles GET .../review with the JSON view
func (h *Handlers) ReviewDraft(c *gin.Context) {
	view, err := h.reviews.View(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if !view.Found {
		status = http.StatusNotFound
	}
	c.JSON(status, Response{Success: view.Found, Data: view, Error: view.Message})
}

// ExportDraft handles GET .../export.xlsx
func (h *Handlers) ExportDraft(c *gin.Context) {
	reportType, id := c.Param("type"), c.Param("id")

	// render first so that errors can still be reported as JSON
	var buf bytes.Buffer
	if err := h.reviews.Export(c.Request.Context(), reportType, id, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.xlsx", reportType, id)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ArchiveDraft handles POST .../archive, storing the export server-side
func (h *Handlers) ArchiveDraft(c *gin.Context) {
	path, err := h.reviews.Archive(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{"path": path}})
}

// SubmitDraft handles POST .../submit
func (h *Handlers) SubmitDraft(c *gin.Context) {
	version, err := ifMatch(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.reviews.Submit(c.Request.Context(), c.Param("type"), c.Param("id"), version)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) respondDraft(c *gin.Context, status int, d *entity.Draft) {
	setETag(c, d)
	c.JSON(status, Response{Success: true, Data: d})
}

func setETag(c *gin.Context, d *entity.Draft) {
	if d != nil && d.Version > 0 {
		c.Header("ETag", strconv.Quote(strconv.Itoa(d.Version)))
	}
}
