package form

import (
	"fmt"
	"strings"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
)

// Validate checks a draft against the required flags of its schema. It
// returns nil or a *entity.ValidationError listing every offending field.
func Validate(s *schema.Schema, d *entity.Draft) error {
	var fields []entity.FieldError

	for _, f := range s.HeaderFields {
		v := d.Header[f.Name]
		if f.Required && v.IsEmpty() {
			fields = append(fields, required(string(ScopeHeader), f.Name, f.DisplayLabel()))
		}
		if f.Type != schema.FieldDynamicArray {
			continue
		}
		for i, item := range v.Items {
			for _, sub := range f.SubFields {
				if sub.Required && strings.TrimSpace(item[sub.Name]) == "" {
					fields = append(fields, required(string(ScopeHeader),
						fmt.Sprintf("%s[%d].%s", f.Name, i, sub.Name),
						fmt.Sprintf("%s #%d %s", f.DisplayLabel(), i+1, sub.DisplayLabel())))
				}
			}
		}
	}

	for _, sec := range s.DynamicSections {
		rows, _ := d.Section(sec.Name)
		if rows == nil {
			continue
		}
		for i, row := range rows.Rows {
			for _, f := range sec.Fields {
				if f.Required && strings.TrimSpace(row[f.Name]) == "" {
					fields = append(fields, required(string(ScopeSectionRow),
						fmt.Sprintf("%s[%d].%s", sec.Name, i, f.Name),
						fmt.Sprintf("%s row %d %s", sec.DisplayLabel(), i+1, f.DisplayLabel())))
				}
			}
		}
	}

	for _, f := range s.SummaryFields {
		if f.Required && d.Summaries[f.Name].IsEmpty() {
			fields = append(fields, required(string(ScopeSummary), f.Name, f.DisplayLabel()))
		}
	}

	if s.RequiresSignature && strings.TrimSpace(d.Signature) == "" {
		fields = append(fields, entity.FieldError{
			Scope:   string(ScopeSignature),
			Field:   "signature",
			Label:   "Signature",
			Message: "signature is required",
		})
	}
	if s.RequiresPhotos && len(d.Photos) == 0 {
		fields = append(fields, entity.FieldError{
			Scope:   "photos",
			Field:   "photos",
			Label:   "Photos",
			Message: "at least one photo is required",
		})
	}

	if len(fields) > 0 {
		return &entity.ValidationError{Fields: fields}
	}
	return nil
}

func required(scope, field, label string) entity.FieldError {
	return entity.FieldError{
		Scope:   scope,
		Field:   field,
		Label:   label,
		Message: label + " is required",
	}
}
