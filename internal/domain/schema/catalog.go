package schema

import "github.com/fieldops/field-reports/internal/domain/entity"

// Report types of the built-in catalog.
const (
	TypeDaily         = "daily"
	TypeCoating       = "coating"
	TypeWelding       = "welding"
	TypeEnvironmental = "environmental"
	TypeSWPPP         = "swppp"
	TypeUtility       = "utility"
)

var (
	weatherConditions = []string{"Clear", "Partly Cloudy", "Overcast", "Rain", "Snow", "Fog", "Windy"}
	yesNoNA           = []string{"Yes", "No", "N/A"}
)

// projectInfo is the header block every field report opens with.
func projectInfo() []FieldSpec {
	return []FieldSpec{
		{Name: "project", Label: "Project", Type: FieldText, Required: true},
		{Name: "inspector", Label: "Inspector", Type: FieldText, Required: true},
		{Name: "date", Label: "Date", Type: FieldDate, Required: true},
		{Name: "location", Label: "Location", Type: FieldText},
		{Name: "contractor", Label: "Contractor", Type: FieldText},
	}
}

func weather() []FieldSpec {
	return []FieldSpec{
		{Name: "weatherCondition", Label: "Conditions", Type: FieldDropdown, Options: weatherConditions, Group: GroupWeather},
		{Name: "tempHigh", Label: "High Temp (°F)", Type: FieldNumber, Group: GroupWeather},
		{Name: "tempLow", Label: "Low Temp (°F)", Type: FieldNumber, Group: GroupWeather},
		{Name: "precipitation", Label: "Precipitation (in)", Type: FieldNumber, Group: GroupWeather},
	}
}

func header(extra ...FieldSpec) []FieldSpec {
	fields := projectInfo()
	fields = append(fields, weather()...)
	return append(fields, extra...)
}

func paths(reportType string) (edit, review, drafts string) {
	base := "/" + reportType + "-report"
	return base, base + "/review/:id", base + "/drafts"
}

func newSchema(reportType, title string, s Schema) *Schema {
	s.ReportType = reportType
	s.Title = title
	s.EditPath, s.ReviewPath, s.DraftsPath = paths(reportType)
	return &s
}

func textFields(names ...string) []FieldSpec {
	fields := make([]FieldSpec, len(names))
	for i, n := range names {
		fields[i] = FieldSpec{Name: n, Label: n, Type: FieldText}
	}
	return fields
}

// Daily returns the daily inspection report schema.
func Daily() *Schema {
	return newSchema(TypeDaily, "Daily Inspection Report", Schema{
		HeaderFields: header(
			FieldSpec{Name: "crewOnSite", Label: "Crew On Site", Type: FieldDynamicArray, SubFields: []FieldSpec{
				{Name: "name", Label: "Name", Type: FieldText},
				{Name: "trade", Label: "Trade", Type: FieldText},
				{Name: "hours", Label: "Hours", Type: FieldNumber},
			}},
		),
		DynamicSections: []SectionSpec{
			{
				Name:   "Crew Daily Summaries",
				Fields: textFields("Crew", "Foreman", "Summary"),
				DefaultRow: func() entity.Row {
					return entity.Row{"Crew": "", "Foreman": "", "Summary": ""}
				},
			},
			{
				Name: "Equipment",
				Fields: []FieldSpec{
					{Name: "Equipment", Label: "Equipment", Type: FieldText},
					{Name: "Quantity", Label: "Quantity", Type: FieldNumber},
					{Name: "Hours", Label: "Hours", Type: FieldNumber},
				},
				DefaultRow: BlankRowFunc("Equipment", "Quantity", "Hours"),
			},
		},
		SummaryFields: []FieldSpec{
			{Name: "workPerformed", Label: "Work Performed", Type: FieldMultiline, Required: true},
			{Name: "safetyObservations", Label: "Safety Observations", Type: FieldMultiline},
			{Name: "delays", Label: "Delays / Issues", Type: FieldMultiline},
		},
		RequiresSignature: true,
	})
}

// Coating returns the coating inspection report schema.
func Coating() *Schema {
	coats := []string{"Primer", "Intermediate", "Topcoat", "Field Joint", "Repair"}
	return newSchema(TypeCoating, "Coating Inspection Report", Schema{
		HeaderFields: header(
			FieldSpec{Name: "coatingSystem", Label: "Coating System", Type: FieldText, Required: true},
			FieldSpec{Name: "relativeHumidity", Label: "Relative Humidity (%)", Type: FieldNumber, Group: GroupWeather},
			FieldSpec{Name: "dewPoint", Label: "Dew Point (°F)", Type: FieldNumber, Group: GroupWeather},
		),
		DynamicSections: []SectionSpec{
			{
				Name: "Coating Applications",
				Fields: []FieldSpec{
					{Name: "Coat", Label: "Coat", Type: FieldDropdown, Options: coats},
					{Name: "Product", Label: "Product", Type: FieldText},
					{Name: "Batch", Label: "Batch #", Type: FieldText},
					{Name: "DFT", Label: "DFT (mils)", Type: FieldNumber},
					{Name: "SurfaceTemp", Label: "Surface Temp (°F)", Type: FieldNumber},
				},
				DropdownOptions: coats,
				DefaultRow: func() entity.Row {
					return entity.Row{"Coat": coats[0], "Product": "", "Batch": "", "DFT": "", "SurfaceTemp": ""}
				},
			},
		},
		SummaryFields: []FieldSpec{
			{Name: "holidayTest", Label: "Holiday Test Result", Type: FieldDropdown, Options: []string{"Pass", "Fail", "Not Performed"}},
			{Name: "comments", Label: "Comments", Type: FieldMultiline},
		},
		RequiresSignature: true,
		RequiresPhotos:    true,
	})
}

// Welding returns the welding inspection report schema.
func Welding() *Schema {
	results := []string{"Accept", "Reject", "Repair"}
	return newSchema(TypeWelding, "Welding Inspection Report", Schema{
		HeaderFields: header(
			FieldSpec{Name: "wps", Label: "WPS", Type: FieldText, Required: true},
			FieldSpec{Name: "pipeSize", Label: "Pipe Size", Type: FieldText},
		),
		DynamicSections: []SectionSpec{
			{
				Name: "Weld Log",
				Fields: []FieldSpec{
					{Name: "WeldNo", Label: "Weld #", Type: FieldText},
					{Name: "Welder", Label: "Welder", Type: FieldText},
					{Name: "Heat", Label: "Heat #", Type: FieldText},
					{Name: "Result", Label: "Visual Result", Type: FieldDropdown, Options: results},
				},
				DropdownOptions: results,
				DefaultRow:      BlankRowFunc("WeldNo", "Welder", "Heat", "Result"),
			},
		},
		SummaryFields: []FieldSpec{
			{Name: "ndeRequested", Label: "NDE Requested", Type: FieldDropdown, Options: yesNoNA},
			{Name: "comments", Label: "Comments", Type: FieldMultiline},
		},
		RequiresSignature: true,
	})
}

// Environmental returns the environmental inspection report schema.
func Environmental() *Schema {
	return newSchema(TypeEnvironmental, "Environmental Inspection Report", Schema{
		HeaderFields: header(
			FieldSpec{Name: "permitNumber", Label: "Permit #", Type: FieldText},
		),
		DynamicSections: []SectionSpec{
			{
				Name: "Observations",
				Fields: []FieldSpec{
					{Name: "Area", Label: "Area", Type: FieldText},
					{Name: "Observation", Label: "Observation", Type: FieldMultiline},
					{Name: "Compliant", Label: "Compliant", Type: FieldDropdown, Options: yesNoNA},
				},
				DropdownOptions: yesNoNA,
				DefaultRow:      BlankRowFunc("Area", "Observation", "Compliant"),
			},
		},
		SummaryFields: []FieldSpec{
			{Name: "correctiveActions", Label: "Corrective Actions", Type: FieldMultiline},
		},
		RequiresPhotos: true,
	})
}

// SWPPP returns the storm water pollution prevention plan inspection schema.
func SWPPP() *Schema {
	bmpStatus := []string{"Functional", "Needs Maintenance", "Failed", "Not Installed"}
	return newSchema(TypeSWPPP, "SWPPP Inspection Report", Schema{
		HeaderFields: header(
			FieldSpec{Name: "inspectionType", Label: "Inspection Type", Type: FieldDropdown, Required: true,
				Options: []string{"Routine", "Post-Storm", "Final"}},
			FieldSpec{Name: "rainfall24h", Label: "Rainfall Last 24h (in)", Type: FieldNumber, Group: GroupWeather},
		),
		DynamicSections: []SectionSpec{
			{
				Name: "BMP Inspections",
				Fields: []FieldSpec{
					{Name: "BMP", Label: "BMP", Type: FieldText},
					{Name: "Status", Label: "Status", Type: FieldDropdown, Options: bmpStatus},
					{Name: "Action", Label: "Action Required", Type: FieldText},
				},
				DropdownOptions: bmpStatus,
				DefaultRow:      BlankRowFunc("BMP", "Status", "Action"),
			},
		},
		SummaryFields: []FieldSpec{
			{Name: "dischargeObserved", Label: "Discharge Observed", Type: FieldDropdown, Options: yesNoNA},
			{Name: "notes", Label: "Notes", Type: FieldMultiline},
		},
		RequiresSignature: true,
		RequiresPhotos:    true,
	})
}

// Utility returns the utility locate/crossing report schema.
func Utility() *Schema {
	owners := []string{"Gas", "Electric", "Water", "Sewer", "Telecom", "Unknown"}
	return newSchema(TypeUtility, "Utility Report", Schema{
		HeaderFields: header(
			FieldSpec{Name: "ticketNumber", Label: "One-Call Ticket #", Type: FieldText, Required: true},
		),
		DynamicSections: []SectionSpec{
			{
				Name: "Utility Crossings",
				Fields: []FieldSpec{
					{Name: "Station", Label: "Station", Type: FieldText},
					{Name: "Owner", Label: "Owner", Type: FieldDropdown, Options: owners},
					{Name: "Depth", Label: "Depth (ft)", Type: FieldNumber},
					{Name: "Clearance", Label: "Clearance (ft)", Type: FieldNumber},
				},
				DropdownOptions: owners,
				DefaultRow:      BlankRowFunc("Station", "Owner", "Depth", "Clearance"),
			},
		},
		SummaryFields: []FieldSpec{
			{Name: "comments", Label: "Comments", Type: FieldMultiline},
		},
	})
}

// Builtins returns fresh copies of every built-in schema.
func Builtins() []*Schema {
	return []*Schema{Daily(), Coating(), Welding(), Environmental(), SWPPP(), Utility()}
}
