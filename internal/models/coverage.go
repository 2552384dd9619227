package models

import (
	"fmt"
	"strings"
)

// LimitationCategory names a procedural or hardware caveat on a baseline record
type LimitationCategory string

const (
	LimitBenchRequired   LimitationCategory = "bench_required"
	LimitServerRequired  LimitationCategory = "server_required"
	LimitDealerOnly      LimitationCategory = "dealer_only"
	LimitHighRisk        LimitationCategory = "high_risk"
	LimitAdapterRequired LimitationCategory = "adapter_required"
	LimitAKLBlocked      LimitationCategory = "akl_blocked"
	LimitPINRequired     LimitationCategory = "pin_required"
	LimitTokenRequired   LimitationCategory = "token_required"
)

var knownLimitations = map[LimitationCategory]bool{
	LimitBenchRequired:   true,
	LimitServerRequired:  true,
	LimitDealerOnly:      true,
	LimitHighRisk:        true,
	LimitAdapterRequired: true,
	LimitAKLBlocked:      true,
	LimitPINRequired:     true,
	LimitTokenRequired:   true,
}

// NormalizeLimitation lowercases and snake-cases a raw category label.
// The result may still be unknown; callers check Known.
func NormalizeLimitation(raw string) LimitationCategory {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return LimitationCategory(s)
}

// Known reports whether c is one of the recognized categories
func (c LimitationCategory) Known() bool {
	return knownLimitations[c]
}

// Limitation is a documented caveat attached to a baseline record
type Limitation struct {
	Category LimitationCategory `json:"category" yaml:"category"`
	Cables   []string           `json:"cables,omitempty" yaml:"cables,omitempty"`
	Context  string             `json:"context,omitempty" yaml:"context,omitempty"`
	Source   string             `json:"source,omitempty" yaml:"source,omitempty"`
}

// ToolTier is the capability profile of one hardware model within a family
type ToolTier struct {
	ID                  string                      `json:"id"`
	Name                string                      `json:"name"`
	Family              ToolFamily                  `json:"family"`
	CoveragePercent     int                         `json:"coverage_percent"`
	ExcludedPlatforms   []string                    `json:"excluded_platforms,omitempty"`
	ExcludedLimitations map[LimitationCategory]bool `json:"excluded_limitations,omitempty"`
	SupportsCANFD       bool                        `json:"supports_can_fd"`
	SupportsDoIP        bool                        `json:"supports_doip"`
	SupportsUWB         bool                        `json:"supports_uwb"`
	RequiresCables      bool                        `json:"requires_cables"`
}

// CoverageBaseline is the vendor-reported best case for one tool family on one vehicle range
type CoverageBaseline struct {
	ID          int64          `json:"id,omitempty"`
	Make        string         `json:"make"`
	Model       string         `json:"model"`
	YearStart   int            `json:"year_start"`
	YearEnd     int            `json:"year_end"`
	ToolFamily  ToolFamily     `json:"tool_family"`
	Status      CoverageStatus `json:"status"`
	Confidence  Confidence     `json:"confidence,omitempty"`
	Platform    string         `json:"platform,omitempty"`
	Chips       []string       `json:"chips,omitempty"`
	Limitations []Limitation   `json:"limitations,omitempty"`
	Cables      []string       `json:"cables,omitempty"`
}

// GroupKey identifies the vehicle range the record applies to
func (b CoverageBaseline) GroupKey() string {
	return vehicleKey(b.Make, b.Model, b.YearStart, b.YearEnd)
}

// HasKnownLimitation reports whether any recognized limitation is attached
func (b CoverageBaseline) HasKnownLimitation() bool {
	for _, l := range b.Limitations {
		if l.Category.Known() {
			return true
		}
	}
	return false
}

// RequiredCables returns the union of record-level and limitation-level cables
func (b CoverageBaseline) RequiredCables() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		k := strings.ToLower(c)
		if c == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, c)
	}
	for _, c := range b.Cables {
		add(c)
	}
	for _, l := range b.Limitations {
		for _, c := range l.Cables {
			add(c)
		}
	}
	return out
}

func vehicleKey(mk, model string, yearStart, yearEnd int) string {
	return fmt.Sprintf("%s|%s|%d-%d",
		strings.ToLower(strings.TrimSpace(mk)),
		strings.ToLower(strings.TrimSpace(model)),
		yearStart, yearEnd)
}

// VerdictReason explains why a verdict differs from its baseline
type VerdictReason string

const (
	ReasonNone               VerdictReason = ""
	ReasonNoBaseline         VerdictReason = "no_baseline"
	ReasonPlatformExcluded   VerdictReason = "platform_excluded"
	ReasonLimitationExcluded VerdictReason = "limitation_excluded"
	ReasonYearSoftened       VerdictReason = "year_softened"
)

// CoverageVerdict is the effective coverage of one tool on one vehicle
type CoverageVerdict struct {
	Covered    bool           `json:"covered"`
	Status     CoverageStatus `json:"status"`
	Confidence Confidence     `json:"confidence"`
	Reason     VerdictReason  `json:"reason,omitempty"`
	// Detail names the matched platform or limitation category
	Detail string `json:"detail,omitempty"`
}

// Stronger reports whether v grants more than other: coverage first, then
// status rank, then confidence.
func (v CoverageVerdict) Stronger(other CoverageVerdict) bool {
	if v.Covered != other.Covered {
		return v.Covered
	}
	if v.Status.Rank() != other.Status.Rank() {
		return v.Status.Rank() > other.Status.Rank()
	}
	return v.Confidence.Rank() > other.Confidence.Rank()
}
