package event

// Type identifies a draft lifecycle event
type Type string

const (
	TypeDraftCreated    Type = "draft.created"
	TypeDraftSaved      Type = "draft.saved"
	TypeDraftDeleted    Type = "draft.deleted"
	TypeReportSubmitted Type = "report.submitted"
	TypeReportArchived  Type = "report.archived"
)

// Types lists every defined event type.
func Types() []Type {
	return []Type{
		TypeDraftCreated,
		TypeDraftSaved,
		TypeDraftDeleted,
		TypeReportSubmitted,
		TypeReportArchived,
	}
}

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}
