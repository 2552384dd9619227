package models

import "fmt"

// ReadinessStatus classifies whether a locksmith can service a vehicle today
type ReadinessStatus string

const (
	ReadinessReady            ReadinessStatus = "READY"
	ReadinessNeedParts        ReadinessStatus = "NEED_PARTS"
	ReadinessNeedSubscription ReadinessStatus = "NEED_SUBSCRIPTION"
	ReadinessCannotService    ReadinessStatus = "CANNOT_SERVICE"
)

// Readiness is the aggregated result for one vehicle and one owned-tool set
type Readiness struct {
	Vehicle  string                          `json:"vehicle,omitempty"`
	Status   ReadinessStatus                 `json:"status"`
	Blockers []string                        `json:"blockers"`
	Verdicts map[ToolFamily]FamilyAssessment `json:"verdicts,omitempty"`
}

// FamilyAssessment is the verdict used for one family plus the context readiness needs
type FamilyAssessment struct {
	Verdict     CoverageVerdict `json:"verdict"`
	ToolID      string          `json:"tool_id,omitempty"`
	UnmetCables []string        `json:"unmet_cables,omitempty"`
	MissingData bool            `json:"missing_data,omitempty"`
	// Caveat is a limitation no tier rule accounted for
	Caveat LimitationCategory `json:"caveat,omitempty"`
}

// FullyCovered reports whether the family can do the job with nothing outstanding
func (a FamilyAssessment) FullyCovered() bool {
	return a.Verdict.Covered && a.Verdict.Status == StatusFull && len(a.UnmetCables) == 0 && a.Caveat == ""
}

// Blocker formats a blocker entry as "<family>: <reason>"
func Blocker(f ToolFamily, reason string) string {
	return fmt.Sprintf("%s: %s", f, reason)
}
