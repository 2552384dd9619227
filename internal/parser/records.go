package parser

import (
	"fmt"
	"strings"

	"locksmith-coverage/internal/models"
)

// rawBaseline is the on-disk shape of a baseline. Enumerations stay strings
// until toBaseline so vendor spellings are normalized in one place.
type rawBaseline struct {
	Make        string          `json:"make" yaml:"make"`
	Model       string          `json:"model" yaml:"model"`
	YearStart   int             `json:"year_start" yaml:"year_start"`
	YearEnd     int             `json:"year_end" yaml:"year_end"`
	ToolFamily  string          `json:"tool_family" yaml:"tool_family"`
	Status      string          `json:"status" yaml:"status"`
	Confidence  string          `json:"confidence" yaml:"confidence"`
	Platform    string          `json:"platform" yaml:"platform"`
	Chips       []string        `json:"chips" yaml:"chips"`
	Cables      []string        `json:"cables" yaml:"cables"`
	Limitations []rawLimitation `json:"limitations" yaml:"limitations"`
}

type rawLimitation struct {
	Category string   `json:"category" yaml:"category"`
	Cables   []string `json:"cables" yaml:"cables"`
	Context  string   `json:"context" yaml:"context"`
	Source   string   `json:"source" yaml:"source"`
}

func (r rawBaseline) toBaseline() (models.CoverageBaseline, error) {
	family, err := models.ParseToolFamily(r.ToolFamily)
	if err != nil {
		return models.CoverageBaseline{}, err
	}

	b := models.CoverageBaseline{
		Make:       strings.TrimSpace(r.Make),
		Model:      strings.TrimSpace(r.Model),
		YearStart:  r.YearStart,
		YearEnd:    r.YearEnd,
		ToolFamily: family,
		Status:     models.ParseCoverageStatus(r.Status),
		Confidence: models.ParseConfidence(r.Confidence),
		Platform:   strings.TrimSpace(r.Platform),
		Chips:      r.Chips,
		Cables:     r.Cables,
	}
	if b.YearEnd == 0 {
		b.YearEnd = b.YearStart
	}
	for _, l := range r.Limitations {
		if strings.TrimSpace(l.Category) == "" {
			continue
		}
		b.Limitations = append(b.Limitations, models.Limitation{
			Category: models.NormalizeLimitation(l.Category),
			Cables:   l.Cables,
			Context:  l.Context,
			Source:   l.Source,
		})
	}

	if errs := ValidateBaseline(&b); len(errs) > 0 {
		return b, fmt.Errorf("invalid baseline: %s", strings.Join(errs, "; "))
	}
	return b, nil
}
