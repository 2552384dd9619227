// Package heatmap projects raw baselines for a vehicle population into
// market-wide traffic-light buckets. It ignores tool ownership entirely.
package heatmap

import (
	"fmt"
	"sort"
	"strings"

	"locksmith-coverage/internal/models"
)

// limitation categories in the order barriers list them
var barrierOrder = []models.LimitationCategory{
	models.LimitDealerOnly,
	models.LimitServerRequired,
	models.LimitTokenRequired,
	models.LimitAKLBlocked,
	models.LimitPINRequired,
	models.LimitBenchRequired,
	models.LimitAdapterRequired,
	models.LimitHighRisk,
}

// Project groups baselines by vehicle range and buckets every group
func Project(baselines []models.CoverageBaseline) models.Heatmap {
	groups := make(map[string][]models.CoverageBaseline)
	var keys []string
	for _, b := range baselines {
		k := b.GroupKey()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], b)
	}

	hm := models.Heatmap{Groups: make([]models.CoverageGroup, 0, len(keys))}
	for _, k := range keys {
		g := ProjectGroup(groups[k])
		hm.Groups = append(hm.Groups, g)
		hm.Counts.Add(g.Status)
	}
	sort.SliceStable(hm.Groups, func(i, j int) bool {
		a, b := hm.Groups[i], hm.Groups[j]
		if !strings.EqualFold(a.Make, b.Make) {
			return strings.ToLower(a.Make) < strings.ToLower(b.Make)
		}
		if !strings.EqualFold(a.Model, b.Model) {
			return strings.ToLower(a.Model) < strings.ToLower(b.Model)
		}
		return a.YearRange < b.YearRange
	})
	return hm
}

// WorstFirst returns a copy of h with groups ordered by severity, RED
// first. Groups of equal severity keep their vehicle order.
func WorstFirst(h models.Heatmap) models.Heatmap {
	out := models.Heatmap{Groups: append([]models.CoverageGroup(nil), h.Groups...), Counts: h.Counts}
	sort.SliceStable(out.Groups, func(i, j int) bool {
		return out.Groups[i].Status.Severity() < out.Groups[j].Status.Severity()
	})
	return out
}

// ProjectGroup buckets the records of one vehicle group, worst first:
// RED when nothing claims coverage, ORANGE when only partial or low-confidence
// coverage exists, YELLOW when every full claim carries a limitation, GREEN otherwise.
func ProjectGroup(records []models.CoverageBaseline) models.CoverageGroup {
	var g models.CoverageGroup
	if len(records) == 0 {
		g.Status = models.HeatRed
		g.ToolsClaimingCoverage = []models.ToolFamily{}
		g.Barrier = "no tool coverage reported"
		g.GapAssessment = "Industry-wide gap: no tool family reports coverage"
		return g
	}

	first := records[0]
	g.Make = first.Make
	g.Model = first.Model
	g.YearRange = models.YearRange(first.YearStart, first.YearEnd)
	g.VehicleGroupLabel = models.GroupLabel(first.Make, first.Model, first.YearStart, first.YearEnd)

	claiming := make(map[models.ToolFamily]bool)
	fullClean := make(map[models.ToolFamily]bool)
	fullFlagged := make(map[models.ToolFamily]bool)
	var covering, flaggedFull []models.CoverageBaseline
	for _, r := range records {
		if !r.ToolFamily.Valid() || !r.Status.Covered() {
			continue
		}
		claiming[r.ToolFamily] = true
		covering = append(covering, r)
		if r.Status != models.StatusFull || r.Confidence == models.ConfidenceLow {
			continue
		}
		if r.HasKnownLimitation() {
			fullFlagged[r.ToolFamily] = true
			flaggedFull = append(flaggedFull, r)
		} else {
			fullClean[r.ToolFamily] = true
		}
	}
	g.ToolsClaimingCoverage = familyList(claiming)

	switch {
	case len(claiming) == 0:
		g.Status = models.HeatRed
		g.Barrier = "no tool coverage reported"
		g.GapAssessment = "Industry-wide gap: no tool family reports coverage"
	case len(fullClean) == 0 && len(fullFlagged) == 0:
		g.Status = models.HeatOrange
		g.Barrier = barrier(covering, "partial support only")
		g.GapAssessment = fmt.Sprintf("Partial coverage only via %s; expect manual or unverified procedures",
			joinFamilies(g.ToolsClaimingCoverage))
	case len(fullClean) == 0:
		g.Status = models.HeatYellow
		g.Barrier = barrier(flaggedFull, "limitation flagged")
		g.GapAssessment = fmt.Sprintf("Full coverage via %s with caveats: %s",
			joinFamilies(familyList(fullFlagged)), g.Barrier)
	default:
		g.Status = models.HeatGreen
		g.Barrier = "none"
		g.GapAssessment = fmt.Sprintf("Serviceable: full coverage via %s", joinFamilies(familyList(fullClean)))
	}
	return g
}

// barrier lists the distinct recognized limitation categories on the records
func barrier(records []models.CoverageBaseline, fallback string) string {
	present := make(map[models.LimitationCategory]bool)
	for _, r := range records {
		for _, l := range r.Limitations {
			c := models.NormalizeLimitation(string(l.Category))
			if c.Known() {
				present[c] = true
			}
		}
	}
	var parts []string
	for _, c := range barrierOrder {
		if present[c] {
			parts = append(parts, string(c))
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

func familyList(set map[models.ToolFamily]bool) []models.ToolFamily {
	out := make([]models.ToolFamily, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	return models.SortFamilies(out)
}

func joinFamilies(fams []models.ToolFamily) string {
	names := make([]string, len(fams))
	for i, f := range fams {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
