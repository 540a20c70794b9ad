package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KeySeparator joins report type and draft id in a persisted key.
const KeySeparator = "_draft_"

// SavedAtLayout is the fixed-width UTC layout used for SavedAt so that
// lexical and chronological order agree.
const SavedAtLayout = "2006-01-02T15:04:05.000Z"

// Key returns the persisted key of a draft: "<reportType>_draft_<id>".
func Key(reportType, id string) string {
	return reportType + KeySeparator + id
}

// KeyPrefix returns the prefix shared by every draft key of a report type.
func KeyPrefix(reportType string) string {
	return reportType + KeySeparator
}

// IDFromKey derives the draft id from a persisted key.
func IDFromKey(reportType, key string) (string, bool) {
	prefix := KeyPrefix(reportType)
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

// Row is one row of a dynamic section or dynamicArray field.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Value holds either a scalar (text, date, number, dropdown, multiline) or,
// for dynamicArray fields, a list of rows. Items is non-nil exactly when the
// value is an array.
type Value struct {
	Text  string
	Items []Row
}

// Scalar builds a scalar value.
func Scalar(s string) Value {
	return Value{Text: s}
}

// Array builds an array value; the result is always non-nil.
func Array(rows ...Row) Value {
	items := make([]Row, 0, len(rows))
	items = append(items, rows...)
	return Value{Items: items}
}

// IsArray reports whether v holds dynamicArray rows.
func (v Value) IsArray() bool {
	return v.Items != nil
}

// IsEmpty reports whether the value carries no user input.
func (v Value) IsEmpty() bool {
	if v.IsArray() {
		for _, row := range v.Items {
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					return false
				}
			}
		}
		return true
	}
	return strings.TrimSpace(v.Text) == ""
}

// Clone returns an independent copy of the value.
func (v Value) Clone() Value {
	if !v.IsArray() {
		return Value{Text: v.Text}
	}
	items := make([]Row, len(v.Items))
	for i, row := range v.Items {
		items[i] = row.Clone()
	}
	return Value{Items: items}
}

// MarshalJSON encodes scalars as strings and arrays as arrays of objects.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsArray() {
		return json.Marshal(v.Items)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts strings, numbers (kept as their literal text), null
// (empty scalar) and arrays of row objects.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Value{}
	case data[0] == '[':
		var rows []Row
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("decode array value: %w", err)
		}
		*v = Array(rows...)
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Text: s}
	case data[0] == 't' || data[0] == 'f':
		*v = Value{Text: string(data)}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s", string(data))
		}
		*v = Value{Text: n.String()}
	}
	return nil
}

// SectionRows holds the rows of one dynamic section.
type SectionRows struct {
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

// Photo is a captured image. DataURI is always a durable data: URI; ephemeral
// handles are never persisted.
type Photo struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	DataURI     string `json:"dataUri"`
	CapturedAt  string `json:"capturedAt,omitempty"`
	// UploadedTo is the server id the photo was last delivered to.
	UploadedTo string `json:"uploadedTo,omitempty"`
}

// Draft is an in-progress report record. Its identity is (ReportType, ID).
type Draft struct {
	ID         string           `json:"id"`
	ReportType string           `json:"reportType"`
	Header     map[string]Value `json:"header"`
	Sections   []SectionRows    `json:"sections"`
	Summaries  map[string]Value `json:"summaries"`
	PreparedBy string           `json:"preparedBy"`
	Signature  string           `json:"signature"`
	SigDate    string           `json:"sigDate"`
	Photos     []Photo          `json:"photos"`
	SavedAt    string           `json:"savedAt,omitempty"`

	// Version is bumped on every save that follows an edit.
	Version int `json:"version,omitempty"`

	// ServerID is set once the report exists on the backend.
	ServerID string `json:"serverId,omitempty"`
}

// Section returns the rows of the named section.
func (d *Draft) Section(name string) (*SectionRows, bool) {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// SavedTime parses SavedAt; the zero time is returned when absent or malformed.
func (d *Draft) SavedTime() time.Time {
	if d.SavedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, d.SavedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy sharing no maps or slices with d.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Header = cloneValues(d.Header)
	out.Summaries = cloneValues(d.Summaries)
	if d.Sections != nil {
		out.Sections = make([]SectionRows, len(d.Sections))
		for i, s := range d.Sections {
			rows := make([]Row, len(s.Rows))
			for j, r := range s.Rows {
				rows[j] = r.Clone()
			}
			out.Sections[i] = SectionRows{Name: s.Name, Rows: rows}
		}
	}
	if d.Photos != nil {
		out.Photos = make([]Photo, len(d.Photos))
		copy(out.Photos, d.Photos)
	}
	return &out
}

func cloneValues(in map[string]Value) map[string]Value {
	if in == nil {
		return nil
	}
	out := make(map[string]Value, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

// DraftEntry is a listed draft annotated with the id derived from its key.
type DraftEntry struct {
	ID    string
	Draft *Draft
}
