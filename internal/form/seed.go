package form

import (
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
)

// Blank returns a fresh draft for s: every header and summary field empty,
// every dynamic section holding one default row.
func Blank(s *schema.Schema) *entity.Draft {
	return Normalize(s, &entity.Draft{ReportType: s.ReportType})
}

// Normalize returns a copy of d in which every field declared by s has a
// value and every declared section has at least one complete row. Values
// and sections unknown to s are carried over untouched.
func Normalize(s *schema.Schema, d *entity.Draft) *entity.Draft {
	out := d.Clone()
	if out.ReportType == "" {
		out.ReportType = s.ReportType
	}

	out.Header = fillFields(out.Header, s.HeaderFields)
	out.Summaries = fillFields(out.Summaries, s.SummaryFields)

	// schema order first, then anything the schema no longer declares
	sections := make([]entity.SectionRows, 0, len(s.DynamicSections)+len(out.Sections))
	declared := make(map[string]bool, len(s.DynamicSections))
	for _, sec := range s.DynamicSections {
		declared[sec.Name] = true
		var rows []entity.Row
		if existing, ok := out.Section(sec.Name); ok {
			rows = existing.Rows
		}
		if len(rows) == 0 {
			rows = []entity.Row{sec.NewRow()}
		}
		for i, row := range rows {
			if row == nil {
				row = make(entity.Row, len(sec.Fields))
			}
			for _, f := range sec.Fields {
				if _, ok := row[f.Name]; !ok {
					row[f.Name] = ""
				}
			}
			rows[i] = row
		}
		sections = append(sections, entity.SectionRows{Name: sec.Name, Rows: rows})
	}
	for _, extra := range out.Sections {
		if !declared[extra.Name] {
			sections = append(sections, extra)
		}
	}
	out.Sections = sections

	if out.Photos == nil {
		out.Photos = []entity.Photo{}
	}
	return out
}

func fillFields(values map[string]entity.Value, fields []schema.FieldSpec) map[string]entity.Value {
	if values == nil {
		values = make(map[string]entity.Value, len(fields))
	}
	for _, f := range fields {
		v, ok := values[f.Name]
		switch {
		case !ok:
			values[f.Name] = f.BlankValue()
		case f.Type == schema.FieldDynamicArray && !v.IsArray():
			values[f.Name] = entity.Array()
		case f.Type == schema.FieldDynamicArray:
			for i, item := range v.Items {
				if item == nil {
					item = make(entity.Row, len(f.SubFields))
				}
				for _, sub := range f.SubFields {
					if _, ok := item[sub.Name]; !ok {
						item[sub.Name] = ""
					}
				}
				v.Items[i] = item
			}
		case v.IsArray():
			values[f.Name] = entity.Scalar("")
		}
	}
	return values
}
