// Package review renders drafts read-only and drives their submission.
package review

import (
	"fmt"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
)

// Item is one labelled value.
type Item struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Column heads a table.
type Column struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Table is a dynamic section or a dynamicArray field.
type Table struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Group is a titled block of header values, e.g. Project Info or Weather.
type Group struct {
	Title  string  `json:"title"`
	Items  []Item  `json:"items"`
	Tables []Table `json:"tables,omitempty"`
}

// PhotoView is a renderable photo.
type PhotoView struct {
	Name       string `json:"name"`
	DataURI    string `json:"dataUri"`
	CapturedAt string `json:"capturedAt,omitempty"`
}

// Action is a navigation or submit control.
type Action struct {
	Label  string `json:"label"`
	URL    string `json:"url"`
	Method string `json:"method"`
}

// Actions available on a review page.
type Actions struct {
	Edit   *Action `json:"edit,omitempty"`
	Exit   Action  `json:"exit"`
	Submit *Action `json:"submit,omitempty"`
}

// View is the read-only presentation of one draft.
type View struct {
	Found      bool        `json:"found"`
	Title      string      `json:"title"`
	ReportType string      `json:"reportType"`
	DraftID    string      `json:"draftId"`
	SavedAt    string      `json:"savedAt,omitempty"`
	Message    string      `json:"message,omitempty"`
	Groups     []Group     `json:"groups"`
	Sections   []Table     `json:"sections"`
	Summaries  []Item      `json:"summaries"`
	PreparedBy string      `json:"preparedBy"`
	Signature  string      `json:"signature,omitempty"`
	SigDate    string      `json:"sigDate"`
	Photos     []PhotoView `json:"photos"`
	Actions    Actions     `json:"actions"`
}

// Render builds the view of d under s. It reads d only.
func Render(s *schema.Schema, d *entity.Draft) View {
	v := View{
		Found:      true,
		Title:      s.Title,
		ReportType: s.ReportType,
		DraftID:    d.ID,
		SavedAt:    d.SavedAt,
		Groups:     make([]Group, 0, 2),
		Sections:   make([]Table, 0, len(s.DynamicSections)),
		Summaries:  make([]Item, 0, len(s.SummaryFields)),
		PreparedBy: d.PreparedBy,
		Signature:  d.Signature,
		SigDate:    d.SigDate,
		Photos:     make([]PhotoView, 0, len(d.Photos)),
		Actions: Actions{
			Edit:   &Action{Label: "Edit", URL: s.EditURL(d.ID), Method: "GET"},
			Exit:   Action{Label: "Exit", URL: s.DraftsURL(), Method: "GET"},
			Submit: &Action{Label: "Submit", URL: s.ReviewURL(d.ID), Method: "POST"},
		},
	}

	for _, title := range s.HeaderGroups() {
		g := Group{Title: title, Items: []Item{}}
		for _, f := range s.HeaderFields {
			if f.HeaderGroup() != title {
				continue
			}
			value := d.Header[f.Name]
			if f.Type == schema.FieldDynamicArray {
				g.Tables = append(g.Tables, arrayTable(f, value))
				continue
			}
			g.Items = append(g.Items, Item{Name: f.Name, Label: f.DisplayLabel(), Value: value.Text})
		}
		v.Groups = append(v.Groups, g)
	}

	for _, sec := range s.DynamicSections {
		t := Table{
			Name:    sec.Name,
			Label:   sec.DisplayLabel(),
			Columns: columns(sec.Fields),
			Rows:    [][]string{},
		}
		if rows, ok := d.Section(sec.Name); ok {
			for _, row := range rows.Rows {
				t.Rows = append(t.Rows, cells(sec.Fields, row))
			}
		}
		v.Sections = append(v.Sections, t)
	}

	for _, f := range s.SummaryFields {
		v.Summaries = append(v.Summaries, Item{Name: f.Name, Label: f.DisplayLabel(), Value: d.Summaries[f.Name].Text})
	}

	for i, p := range d.Photos {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Photo %d", i+1)
		}
		v.Photos = append(v.Photos, PhotoView{Name: name, DataURI: p.DataURI, CapturedAt: p.CapturedAt})
	}
	return v
}

// NotFound is the view shown when no draft resolves for id.
func NotFound(s *schema.Schema, id string) View {
	return View{
		Found:      false,
		Title:      s.Title,
		ReportType: s.ReportType,
		DraftID:    id,
		Message:    fmt.Sprintf("No %s draft was found with id %q. It may have been submitted or deleted.", s.Title, id),
		Groups:     []Group{},
		Sections:   []Table{},
		Summaries:  []Item{},
		Photos:     []PhotoView{},
		Actions: Actions{
			Exit: Action{Label: "Back to drafts", URL: s.DraftsURL(), Method: "GET"},
		},
	}
}

func arrayTable(f schema.FieldSpec, value entity.Value) Table {
	t := Table{
		Name:    f.Name,
		Label:   f.DisplayLabel(),
		Columns: columns(f.SubFields),
		Rows:    [][]string{},
	}
	for _, item := range value.Items {
		t.Rows = append(t.Rows, cells(f.SubFields, item))
	}
	return t
}

func columns(fields []schema.FieldSpec) []Column {
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Name: f.Name, Label: f.DisplayLabel()}
	}
	return cols
}

func cells(fields []schema.FieldSpec, row entity.Row) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = row[f.Name]
	}
	return out
}
