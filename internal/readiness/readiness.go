// Package readiness classifies whether a locksmith's owned tools can service
// a vehicle, and names what blocks them when they cannot.
package readiness

import (
	"strings"

	"locksmith-coverage/internal/models"
)

// Calculate aggregates per-family assessments against the owned families.
// Precedence is fixed: READY, then NEED_PARTS, then NEED_SUBSCRIPTION, and
// CANNOT_SERVICE only when no family anywhere reports coverage. Owned
// families with no assessment count as not covered.
func Calculate(vehicle models.Vehicle, owned []models.ToolFamily, verdicts map[models.ToolFamily]models.FamilyAssessment) models.Readiness {
	ownedSet := make(map[models.ToolFamily]bool, len(owned))
	for _, f := range owned {
		if f.Valid() {
			ownedSet[f] = true
		}
	}

	var ready, parts, subscription bool
	for _, f := range models.Families {
		a, ok := verdicts[f]
		if ownedSet[f] {
			if !ok {
				continue
			}
			if a.FullyCovered() {
				ready = true
			} else if a.Verdict.Covered {
				parts = true
			}
			continue
		}
		if ok && a.Verdict.Covered {
			subscription = true
		}
	}

	r := models.Readiness{
		Verdicts: verdicts,
		Blockers: []string{},
	}
	if vehicle.Make != "" || vehicle.Model != "" {
		r.Vehicle = vehicle.Label()
	}
	switch {
	case ready:
		r.Status = models.ReadinessReady
		return r
	case parts:
		r.Status = models.ReadinessNeedParts
	case subscription:
		r.Status = models.ReadinessNeedSubscription
	default:
		r.Status = models.ReadinessCannotService
	}

	for _, f := range models.Families {
		if !ownedSet[f] {
			continue
		}
		a, ok := verdicts[f]
		if !ok {
			a = models.FamilyAssessment{MissingData: true}
		}
		r.Blockers = append(r.Blockers, models.Blocker(f, ownedReason(a)))
	}
	for _, f := range models.Families {
		if ownedSet[f] {
			continue
		}
		a, ok := verdicts[f]
		if !ok {
			continue
		}
		if a.Verdict.Covered {
			r.Blockers = append(r.Blockers, models.Blocker(f, "not owned"))
		} else {
			r.Blockers = append(r.Blockers, models.Blocker(f, "not covered"))
		}
	}
	return r
}

func ownedReason(a models.FamilyAssessment) string {
	v := a.Verdict
	switch v.Reason {
	case models.ReasonPlatformExcluded:
		return "platform excluded (" + v.Detail + ")"
	case models.ReasonLimitationExcluded:
		return "limitation " + v.Detail
	}
	if !v.Covered {
		return "not covered"
	}
	if len(a.UnmetCables) > 0 {
		return "requires cable " + strings.Join(a.UnmetCables, ", ")
	}
	if a.Caveat != "" {
		return "limitation " + string(a.Caveat)
	}
	if v.Reason == models.ReasonYearSoftened || v.Status == models.StatusCheck {
		return "needs verification"
	}
	return "partial coverage"
}
