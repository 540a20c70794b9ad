package submission

import (
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
)

// Payload is the report body sent to the reports API.
type Payload struct {
	ReportType string                  `json:"reportType"`
	Title      string                  `json:"title"`
	DraftID    string                  `json:"draftId"`
	Header     map[string]entity.Value `json:"header"`
	Sections   []entity.SectionRows    `json:"sections"`
	Summaries  map[string]entity.Value `json:"summaries"`
	PreparedBy string                  `json:"preparedBy"`
	Signature  string                  `json:"signature,omitempty"`
	SigDate    string                  `json:"sigDate,omitempty"`
	PhotoCount int                     `json:"photoCount"`
}

// PhotoMetadata accompanies an uploaded photo.
type PhotoMetadata struct {
	Name        string
	ContentType string
	CapturedAt  string
	Index       int
}

// BuildPayload projects a draft onto the fields its schema declares. Photos
// travel separately through UploadPhoto.
func BuildPayload(s *schema.Schema, d *entity.Draft) Payload {
	p := Payload{
		ReportType: s.ReportType,
		Title:      s.Title,
		DraftID:    d.ID,
		Header:     make(map[string]entity.Value, len(s.HeaderFields)),
		Sections:   make([]entity.SectionRows, 0, len(s.DynamicSections)),
		Summaries:  make(map[string]entity.Value, len(s.SummaryFields)),
		PreparedBy: d.PreparedBy,
		Signature:  d.Signature,
		SigDate:    d.SigDate,
		PhotoCount: len(d.Photos),
	}

	for _, f := range s.HeaderFields {
		v, ok := d.Header[f.Name]
		if !ok {
			v = f.BlankValue()
		}
		p.Header[f.Name] = v.Clone()
	}
	for _, sec := range s.DynamicSections {
		out := entity.SectionRows{Name: sec.Name, Rows: []entity.Row{}}
		if rows, ok := d.Section(sec.Name); ok {
			for _, row := range rows.Rows {
				out.Rows = append(out.Rows, row.Clone())
			}
		}
		p.Sections = append(p.Sections, out)
	}
	for _, f := range s.SummaryFields {
		v, ok := d.Summaries[f.Name]
		if !ok {
			v = f.BlankValue()
		}
		p.Summaries[f.Name] = v.Clone()
	}
	return p
}
