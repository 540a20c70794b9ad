package schema

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed definition.schema.json
var definitionSchema []byte

type fieldDef struct {
	Name      string     `yaml:"name"`
	Label     string     `yaml:"label"`
	Type      string     `yaml:"type"`
	Required  bool       `yaml:"required"`
	Group     string     `yaml:"group"`
	Options   []string   `yaml:"options"`
	SubFields []fieldDef `yaml:"subFields"`
}

type sectionDef struct {
	Name            string            `yaml:"name"`
	Label           string            `yaml:"label"`
	Fields          []fieldDef        `yaml:"fields"`
	DropdownOptions []string          `yaml:"dropdownOptions"`
	Defaults        map[string]string `yaml:"defaults"`
}

type definition struct {
	Title             string       `yaml:"title"`
	ReportType        string       `yaml:"reportType"`
	HeaderFields      []fieldDef   `yaml:"headerFields"`
	DynamicSections   []sectionDef `yaml:"dynamicSections"`
	SummaryFields     []fieldDef   `yaml:"summaryFields"`
	RequiresSignature bool         `yaml:"requiresSignature"`
	RequiresPhotos    bool         `yaml:"requiresPhotos"`
	ReviewPath        string       `yaml:"reviewPath"`
	EditPath          string       `yaml:"editPath"`
	DraftsPath        string       `yaml:"draftsPath"`
}

// Loader reads YAML schema definitions. Each document is checked against
// the embedded definition format before conversion.
type Loader struct {
	validator *gojsonschema.Schema
	logger    *zap.Logger
}

// NewLoader compiles the definition format.
func NewLoader(logger *zap.Logger) (*Loader, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(definitionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile definition format: %w", err)
	}
	return &Loader{validator: compiled, logger: logger}, nil
}

// Parse converts one YAML document into a validated Schema.
func (l *Loader) Parse(data []byte) (*Schema, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	result, err := l.validator.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to validate definition: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrDefinitionInvalid, strings.Join(errs, "; "))
	}

	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	s := def.toSchema()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile parses a single definition file.
func (l *Loader) LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}
	s, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadDir registers every *.yaml / *.yml definition under dir. A missing
// directory is not an error.
func (l *Loader) LoadDir(dir string, registry *Registry) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		l.logger.Debug("Schema directory not found, skipping", zap.String("dir", dir))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, path := range files {
		s, err := l.LoadFile(path)
		if err != nil {
			return 0, err
		}
		if err := registry.Register(s); err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		l.logger.Info("Registered report schema",
			zap.String("report_type", s.ReportType),
			zap.String("file", path))
	}
	return len(files), nil
}

func (d definition) toSchema() *Schema {
	s := &Schema{
		Title:             d.Title,
		ReportType:        d.ReportType,
		HeaderFields:      convertFields(d.HeaderFields),
		SummaryFields:     convertFields(d.SummaryFields),
		RequiresSignature: d.RequiresSignature,
		RequiresPhotos:    d.RequiresPhotos,
		ReviewPath:        d.ReviewPath,
		EditPath:          d.EditPath,
		DraftsPath:        d.DraftsPath,
	}

	edit, review, drafts := paths(d.ReportType)
	if s.EditPath == "" {
		s.EditPath = edit
	}
	if s.ReviewPath == "" {
		s.ReviewPath = review
	}
	if s.DraftsPath == "" {
		s.DraftsPath = drafts
	}

	for _, sec := range d.DynamicSections {
		fields := convertFields(sec.Fields)
		s.DynamicSections = append(s.DynamicSections, SectionSpec{
			Name:            sec.Name,
			Label:           sec.Label,
			Fields:          fields,
			DropdownOptions: sec.DropdownOptions,
			DefaultRow:      defaultRowFunc(fields, sec.Defaults),
		})
	}
	return s
}

func defaultRowFunc(fields []FieldSpec, defaults map[string]string) func() entity.Row {
	return func() entity.Row {
		row := make(entity.Row, len(fields))
		for _, f := range fields {
			row[f.Name] = defaults[f.Name]
		}
		return row
	}
}

func convertFields(defs []fieldDef) []FieldSpec {
	if len(defs) == 0 {
		return nil
	}
	out := make([]FieldSpec, len(defs))
	for i, d := range defs {
		out[i] = FieldSpec{
			Name:      d.Name,
			Label:     d.Label,
			Type:      FieldType(d.Type),
			Required:  d.Required,
			Group:     d.Group,
			Options:   d.Options,
			SubFields: convertFields(d.SubFields),
		}
	}
	return out
}
