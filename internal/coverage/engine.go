// Package coverage derives the effective coverage of one tool on one vehicle
// from the family baseline and the tool's tier profile.
//
// Inference never fails on domain data: missing tiers pass the baseline
// through, missing baselines resolve to "not covered", and unrecognized
// limitation categories are ignored.
package coverage

import (
	"strings"

	"locksmith-coverage/internal/models"
	"locksmith-coverage/internal/tiers"
)

// Tunable thresholds for the year-based soft downgrade. They are hand-tuned
// heuristics for entry-level tools lagging new security updates.
const (
	SoftDowngradePercent = 80
	SoftDowngradeYear    = 2022
)

// Rule identifies which inference rule produced a verdict
type Rule string

const (
	RuleNoTier             Rule = "no_tier"
	RuleFloor              Rule = "floor"
	RulePlatformExclusion  Rule = "platform_exclusion"
	RuleLimitationExcluded Rule = "limitation_exclusion"
	RuleYearSoftening      Rule = "year_softening"
	RulePassThrough        Rule = "pass_through"
)

// Engine evaluates inference rules against a tier registry
type Engine struct {
	registry *tiers.Registry
}

// NewEngine returns an engine over the given registry; nil means the built-in catalog
func NewEngine(registry *tiers.Registry) *Engine {
	if registry == nil {
		registry = tiers.Default()
	}
	return &Engine{registry: registry}
}

// Registry returns the registry the engine narrows against
func (e *Engine) Registry() *tiers.Registry {
	return e.registry
}

// Infer computes the verdict for toolID given the baseline status, the
// vehicle platform tag, the baseline limitations and the vehicle's last model year.
func (e *Engine) Infer(toolID string, status models.CoverageStatus, platformTag string, limitations []models.Limitation, yearEnd int) models.CoverageVerdict {
	v, _ := e.Trace(toolID, status, platformTag, limitations, yearEnd)
	return v
}

// Trace is Infer plus the rule that decided the verdict
func (e *Engine) Trace(toolID string, status models.CoverageStatus, platformTag string, limitations []models.Limitation, yearEnd int) (models.CoverageVerdict, Rule) {
	tier, ok := e.registry.Tier(toolID)
	if !ok {
		return PassThrough(status), RuleNoTier
	}

	if !status.Covered() {
		return notCovered(models.ConfidenceHigh, models.ReasonNone, ""), RuleFloor
	}

	if platform, hit := excludedPlatform(tier, platformTag); hit {
		return notCovered(models.ConfidenceMedium, models.ReasonPlatformExcluded, platform), RulePlatformExclusion
	}

	softened := softDowngrade(tier, status, yearEnd)

	if category, hit := excludedLimitation(tier, limitations); hit {
		if status != models.StatusFull {
			return notCovered(models.ConfidenceMedium, models.ReasonLimitationExcluded, string(category)), RuleLimitationExcluded
		}
		v := models.CoverageVerdict{
			Covered:    true,
			Status:     models.StatusPartial,
			Confidence: models.ConfidenceMedium,
			Reason:     models.ReasonLimitationExcluded,
			Detail:     string(category),
		}
		// a weak tier on a new vehicle never reads stronger than it would without the exclusion
		if softened {
			v.Status = models.StatusCheck
			v.Confidence = models.ConfidenceLow
		}
		return v, RuleLimitationExcluded
	}

	if softened {
		return models.CoverageVerdict{
			Covered:    true,
			Status:     models.StatusCheck,
			Confidence: models.ConfidenceLow,
			Reason:     models.ReasonYearSoftened,
		}, RuleYearSoftening
	}

	conf := models.ConfidenceMedium
	if tier.CoveragePercent == 100 {
		conf = models.ConfidenceHigh
	}
	return models.CoverageVerdict{Covered: true, Status: status, Confidence: conf}, RulePassThrough
}

// InferBaseline evaluates a tool against a stored baseline record. A nil
// baseline is the missing-data case and yields a definite "not covered".
func (e *Engine) InferBaseline(toolID string, baseline *models.CoverageBaseline, vehicle models.Vehicle) models.CoverageVerdict {
	if baseline == nil {
		return notCovered(models.ConfidenceHigh, models.ReasonNoBaseline, "")
	}
	platform := vehicle.PlatformTag
	if platform == "" {
		platform = baseline.Platform
	}
	yearEnd := vehicle.YearEnd
	if yearEnd == 0 {
		yearEnd = baseline.YearEnd
	}
	return e.Infer(toolID, baseline.Status, platform, baseline.Limitations, yearEnd)
}

// PassThrough is the verdict for a family baseline taken as reported
func PassThrough(status models.CoverageStatus) models.CoverageVerdict {
	return models.CoverageVerdict{
		Covered:    status.Covered(),
		Status:     status,
		Confidence: models.ConfidenceHigh,
	}
}

var defaultEngine = NewEngine(nil)

// InferCoverage runs inference against the built-in tier catalog
func InferCoverage(toolID string, status models.CoverageStatus, platformTag string, limitations []models.Limitation, yearEnd int) models.CoverageVerdict {
	return defaultEngine.Infer(toolID, status, platformTag, limitations, yearEnd)
}

func notCovered(conf models.Confidence, reason models.VerdictReason, detail string) models.CoverageVerdict {
	return models.CoverageVerdict{
		Covered:    false,
		Status:     models.StatusUnknown,
		Confidence: conf,
		Reason:     reason,
		Detail:     detail,
	}
}

func excludedPlatform(tier models.ToolTier, platformTag string) (string, bool) {
	tag := strings.ToLower(strings.TrimSpace(platformTag))
	if tag == "" {
		return "", false
	}
	for _, p := range tier.ExcludedPlatforms {
		excluded := strings.ToLower(strings.TrimSpace(p))
		if excluded != "" && strings.Contains(tag, excluded) {
			return p, true
		}
	}
	return "", false
}

// excludedLimitation returns the first recognized limitation the tier cannot handle
func excludedLimitation(tier models.ToolTier, limitations []models.Limitation) (models.LimitationCategory, bool) {
	if len(tier.ExcludedLimitations) == 0 {
		return "", false
	}
	for _, l := range limitations {
		c := models.NormalizeLimitation(string(l.Category))
		if !c.Known() {
			continue
		}
		if tier.ExcludedLimitations[c] {
			return c, true
		}
	}
	return "", false
}

func softDowngrade(tier models.ToolTier, status models.CoverageStatus, yearEnd int) bool {
	return tier.CoveragePercent < SoftDowngradePercent &&
		yearEnd >= SoftDowngradeYear &&
		status == models.StatusFull
}
