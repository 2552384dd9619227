package readiness

import (
	"context"
	"sync"

	"locksmith-coverage/internal/coverage"
	"locksmith-coverage/internal/models"
)

// Assessor builds per-family verdicts for a vehicle and classifies them
type Assessor struct {
	engine *coverage.Engine
}

// NewAssessor returns an assessor using the given inference engine; nil means the built-in catalog
func NewAssessor(engine *coverage.Engine) *Assessor {
	if engine == nil {
		engine = coverage.NewEngine(nil)
	}
	return &Assessor{engine: engine}
}

// Assess computes readiness for one vehicle. baselines are the records the
// data store returned for the vehicle; owned is the locksmith's inventory.
//
// Owned families use the best verdict among the owned tools of that family.
// Non-owned families use their baseline as reported. A non-owned family
// without a baseline is left out entirely.
func (a *Assessor) Assess(vehicle models.Vehicle, baselines []models.CoverageBaseline, owned models.OwnedToolSet) models.Readiness {
	registry := a.engine.Registry()
	byFamily := SelectBaselines(baselines)
	toolsByFamily := registry.ToolsByFamily(owned.ToolIDs)

	ownedFamilies := make([]models.ToolFamily, 0, len(toolsByFamily))
	verdicts := make(map[models.ToolFamily]models.FamilyAssessment)
	for _, f := range models.Families {
		b, hasBaseline := byFamily[f]
		tools := toolsByFamily[f]
		if len(tools) == 0 {
			if hasBaseline {
				verdicts[f] = models.FamilyAssessment{Verdict: coverage.PassThrough(b.Status)}
			}
			continue
		}

		ownedFamilies = append(ownedFamilies, f)
		var baseline *models.CoverageBaseline
		if hasBaseline {
			baseline = &b
		}
		var best models.FamilyAssessment
		for i, id := range tools {
			cand := models.FamilyAssessment{
				Verdict:     a.engine.InferBaseline(id, baseline, vehicle),
				ToolID:      id,
				MissingData: !hasBaseline,
			}
			if cand.Verdict.Covered && baseline != nil {
				cand.UnmetCables = a.unmetCables(id, *baseline, owned)
				cand.Caveat = a.caveat(id, *baseline)
			}
			if i == 0 || better(cand, best) {
				best = cand
			}
		}
		verdicts[f] = best
	}

	return Calculate(vehicle, ownedFamilies, verdicts)
}

func (a *Assessor) unmetCables(toolID string, b models.CoverageBaseline, owned models.OwnedToolSet) []string {
	if tier, ok := a.engine.Registry().Tier(toolID); ok && !tier.RequiresCables {
		return nil
	}
	var unmet []string
	for _, c := range b.RequiredCables() {
		if !owned.HasCable(c) {
			unmet = append(unmet, c)
		}
	}
	return unmet
}

// caveat returns the first limitation that a tool without a tier leaves
// unresolved. Tiered tools settle limitations through their exclusions, and
// adapter limitations are settled by the cable check.
func (a *Assessor) caveat(toolID string, b models.CoverageBaseline) models.LimitationCategory {
	if _, ok := a.engine.Registry().Tier(toolID); ok {
		return ""
	}
	for _, l := range b.Limitations {
		c := models.NormalizeLimitation(string(l.Category))
		if c.Known() && c != models.LimitAdapterRequired {
			return c
		}
	}
	return ""
}

// better reports whether x should replace the current best. Ties keep the
// earlier tool id, and ids arrive sorted, so input order never matters.
func better(x, best models.FamilyAssessment) bool {
	if x.FullyCovered() != best.FullyCovered() {
		return x.FullyCovered()
	}
	if x.Verdict.Stronger(best.Verdict) {
		return true
	}
	if best.Verdict.Stronger(x.Verdict) {
		return false
	}
	return len(x.UnmetCables) < len(best.UnmetCables)
}

// SelectBaselines picks one baseline per family. When several records cover
// the vehicle, the narrowest year range wins, then the weaker status, so a
// broad optimistic record never overrides a specific one.
func SelectBaselines(baselines []models.CoverageBaseline) map[models.ToolFamily]models.CoverageBaseline {
	out := make(map[models.ToolFamily]models.CoverageBaseline)
	for _, b := range baselines {
		if !b.ToolFamily.Valid() {
			continue
		}
		cur, ok := out[b.ToolFamily]
		if !ok || preferBaseline(b, cur) {
			out[b.ToolFamily] = b
		}
	}
	return out
}

func preferBaseline(x, cur models.CoverageBaseline) bool {
	xs, cs := x.YearEnd-x.YearStart, cur.YearEnd-cur.YearStart
	if xs != cs {
		return xs < cs
	}
	if x.Status.Rank() != cur.Status.Rank() {
		return x.Status.Rank() < cur.Status.Rank()
	}
	return x.ID < cur.ID
}

// Job is one vehicle to assess in a fleet run
type Job struct {
	Vehicle   models.Vehicle
	Baselines []models.CoverageBaseline
	Owned     models.OwnedToolSet
}

// AssessFleet assesses independent vehicles on a bounded worker pool and
// returns results in job order. Cancellation is checked between jobs.
func (a *Assessor) AssessFleet(ctx context.Context, jobs []Job, workers int) ([]models.Readiness, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]models.Readiness, len(jobs))
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				j := jobs[i]
				results[i] = a.Assess(j.Vehicle, j.Baselines, j.Owned)
			}
		}()
	}

	var err error
feed:
	for i := range jobs {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return results, nil
}

var defaultAssessor = NewAssessor(nil)

// Assess computes readiness against the built-in tier catalog
func Assess(vehicle models.Vehicle, baselines []models.CoverageBaseline, owned models.OwnedToolSet) models.Readiness {
	return defaultAssessor.Assess(vehicle, baselines, owned)
}
