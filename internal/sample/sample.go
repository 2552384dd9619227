// Package sample generates synthetic coverage baselines for demos and load
// testing.
package sample

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"locksmith-coverage/internal/models"
)

// Makes maps make names to the models sampled for them
var Makes = map[string][]string{
	"Toyota":    {"Camry", "Corolla", "RAV4", "Tacoma", "Prius"},
	"Honda":     {"Civic", "Accord", "CR-V", "Pilot"},
	"Ford":      {"F-150", "Explorer", "Escape", "Bronco", "Mustang"},
	"Chevrolet": {"Silverado", "Equinox", "Malibu", "Tahoe"},
	"Nissan":    {"Altima", "Rogue", "Sentra", "Leaf"},
	"Hyundai":   {"Elantra", "Tucson", "Santa Fe"},
	"Kia":       {"Soul", "Sportage", "Telluride"},
	"BMW":       {"3 Series", "X3", "X5"},
	"Jeep":      {"Wrangler", "Grand Cherokee", "Compass"},
}

// Year bounds for generated ranges
const (
	MinYear = 2005
	MaxYear = 2024
)

var platforms = []string{"", "", "", "CAN FD", "DoIP", "SGW", "BDC", "TNGA-K"}

var statusWeights = []struct {
	status models.CoverageStatus
	weight int
}{
	{models.StatusFull, 45},
	{models.StatusPartial, 15},
	{models.StatusCheck, 10},
	{models.StatusNone, 20},
	{models.StatusUnknown, 10},
}

var limitationPool = []models.LimitationCategory{
	models.LimitBenchRequired, models.LimitServerRequired, models.LimitDealerOnly,
	models.LimitAKLBlocked, models.LimitPINRequired, models.LimitTokenRequired,
	models.LimitAdapterRequired, models.LimitHighRisk,
}

var confidences = []models.Confidence{
	models.ConfidenceHigh, models.ConfidenceHigh, models.ConfidenceMedium,
	models.ConfidenceLow, models.ConfidenceUnset,
}

// Generator produces deterministic baselines for a seed
type Generator struct {
	rng   *rand.Rand
	makes []string
}

// NewGenerator returns a generator; equal seeds yield equal output
func NewGenerator(seed uint64) *Generator {
	makes := make([]string, 0, len(Makes))
	for mk := range Makes {
		makes = append(makes, mk)
	}
	sort.Strings(makes)
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), makes: makes}
}

// Baselines generates one record per tool family for each of n vehicle
// ranges. Ranges repeat rarely; the store treats repeats as extra records.
func (g *Generator) Baselines(n int) []models.CoverageBaseline {
	out := make([]models.CoverageBaseline, 0, n*len(models.Families))
	for i := 0; i < n; i++ {
		v := g.vehicle()
		for _, f := range models.Families {
			out = append(out, g.baseline(v, f))
		}
	}
	return out
}

func (g *Generator) vehicle() models.Vehicle {
	mk := g.makes[g.rng.IntN(len(g.makes))]
	list := Makes[mk]
	start := MinYear + g.rng.IntN(MaxYear-MinYear+1)
	end := min(start+g.rng.IntN(6), MaxYear)
	return models.Vehicle{
		Make:        mk,
		Model:       list[g.rng.IntN(len(list))],
		YearStart:   start,
		YearEnd:     end,
		PlatformTag: platforms[g.rng.IntN(len(platforms))],
	}
}

func (g *Generator) baseline(v models.Vehicle, f models.ToolFamily) models.CoverageBaseline {
	b := models.CoverageBaseline{
		Make:       v.Make,
		Model:      v.Model,
		YearStart:  v.YearStart,
		YearEnd:    v.YearEnd,
		ToolFamily: f,
		Status:     g.status(),
		Confidence: confidences[g.rng.IntN(len(confidences))],
		Platform:   v.PlatformTag,
	}
	if !b.Status.Covered() || g.rng.IntN(3) != 0 {
		return b
	}

	category := limitationPool[g.rng.IntN(len(limitationPool))]
	l := models.Limitation{Category: category, Source: "generated"}
	if category == models.LimitAdapterRequired {
		l.Cables = []string{fmt.Sprintf("ADC%d", 100+g.rng.IntN(900))}
	}
	b.Limitations = append(b.Limitations, l)
	return b
}

func (g *Generator) status() models.CoverageStatus {
	total := 0
	for _, w := range statusWeights {
		total += w.weight
	}
	n := g.rng.IntN(total)
	for _, w := range statusWeights {
		if n < w.weight {
			return w.status
		}
		n -= w.weight
	}
	return models.StatusUnknown
}
