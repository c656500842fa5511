package models

// Canonical section types inferred from headings.
const (
	SectionIntroduction = "introduction"
	SectionRelatedWork  = "related_work"
	SectionMethods      = "methods"
	SectionResults      = "results"
	SectionDiscussion   = "discussion"
	SectionConclusion   = "conclusion"
	SectionReferences   = "references"
	SectionAppendix     = "appendix"
	SectionOther        = "other"
)

// SectionInfo is one logical division of a document, located by character
// offsets into the combined text. Offsets are monotonically non-decreasing
// across a detected list; Index preserves document order even when two
// consecutive sections share a type.
type SectionInfo struct {
	Type        string `bson:"type" json:"type"`
	Title       string `bson:"title" json:"title"`
	Index       int    `bson:"index" json:"index"`
	StartOffset int    `bson:"start_offset" json:"start_offset"`
	EndOffset   int    `bson:"end_offset" json:"end_offset"`
	StartPage   int    `bson:"start_page,omitempty" json:"start_page,omitempty"`
}

// SectionSummary is the section detector's output: the ordered sections plus
// whether the provider supplied usable layout-role signal. Downstream
// filtering relaxes its heuristics when RoleSignal is false.
type SectionSummary struct {
	Sections   []SectionInfo `bson:"sections" json:"sections"`
	RoleSignal bool          `bson:"role_signal" json:"role_signal"`
}

// References returns the first section of type references, or nil.
func (s *SectionSummary) References() *SectionInfo {
	for i := range s.Sections {
		if s.Sections[i].Type == SectionReferences {
			return &s.Sections[i]
		}
	}
	return nil
}
