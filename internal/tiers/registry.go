// Package tiers holds the static tool catalog: which family each tool id
// belongs to and, for tools we can narrow, their hardware tier profile.
package tiers

import (
	"sort"
	"strings"

	"locksmith-coverage/internal/models"
)

// Registry resolves tool ids to families and tier profiles. A Registry is
// immutable after construction and safe for concurrent use.
type Registry struct {
	tiers    map[string]models.ToolTier
	families map[string]models.ToolFamily
}

// ToolInfo describes one recognized tool id
type ToolInfo struct {
	ID     string            `json:"id"`
	Family models.ToolFamily `json:"family"`
	Tier   *models.ToolTier  `json:"tier,omitempty"`
}

var defaultRegistry = NewRegistry(catalogTiers, catalogFamilies)

// Default returns the built-in catalog
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry from tier profiles and a tool→family table.
// Every tier is implicitly registered under its own family.
func NewRegistry(tiers []models.ToolTier, families map[string]models.ToolFamily) *Registry {
	r := &Registry{
		tiers:    make(map[string]models.ToolTier, len(tiers)),
		families: make(map[string]models.ToolFamily, len(families)+len(tiers)),
	}
	for id, f := range families {
		if f.Valid() {
			r.families[normalizeID(id)] = f
		}
	}
	for _, t := range tiers {
		id := normalizeID(t.ID)
		if id == "" || !t.Family.Valid() {
			continue
		}
		t = cloneTier(t)
		t.ID = id
		r.tiers[id] = t
		r.families[id] = t.Family
	}
	return r
}

// Tier returns the tier profile for a tool id, if one is registered
func (r *Registry) Tier(toolID string) (models.ToolTier, bool) {
	t, ok := r.tiers[normalizeID(toolID)]
	if !ok {
		return models.ToolTier{}, false
	}
	return cloneTier(t), true
}

// Family returns the family a tool id belongs to
func (r *Registry) Family(toolID string) (models.ToolFamily, bool) {
	f, ok := r.families[normalizeID(toolID)]
	return f, ok
}

// ResolveFamilies maps owned tool ids to the distinct families they cover,
// in canonical order. Unrecognized ids are dropped.
func (r *Registry) ResolveFamilies(toolIDs []string) []models.ToolFamily {
	seen := make(map[models.ToolFamily]bool)
	var out []models.ToolFamily
	for _, id := range toolIDs {
		f, ok := r.Family(id)
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return models.SortFamilies(out)
}

// ToolsByFamily groups recognized tool ids by family; ids within a family are
// sorted so callers see the same order however the input was arranged.
func (r *Registry) ToolsByFamily(toolIDs []string) map[models.ToolFamily][]string {
	out := make(map[models.ToolFamily][]string)
	seen := make(map[string]bool)
	for _, raw := range toolIDs {
		id := normalizeID(raw)
		f, ok := r.families[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out[f] = append(out[f], id)
	}
	for f := range out {
		sort.Strings(out[f])
	}
	return out
}

// Tools lists every recognized tool, ordered by family then id
func (r *Registry) Tools() []ToolInfo {
	out := make([]ToolInfo, 0, len(r.families))
	for id, f := range r.families {
		info := ToolInfo{ID: id, Family: f}
		if t, ok := r.tiers[id]; ok {
			t = cloneTier(t)
			info.Tier = &t
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family.Order() < out[j].Family.Order()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tiers lists every registered tier, ordered by family then descending coverage
func (r *Registry) Tiers() []models.ToolTier {
	out := make([]models.ToolTier, 0, len(r.tiers))
	for _, t := range r.tiers {
		out = append(out, cloneTier(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family.Order() < out[j].Family.Order()
		}
		if out[i].CoveragePercent != out[j].CoveragePercent {
			return out[i].CoveragePercent > out[j].CoveragePercent
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetTier looks up a tier in the built-in catalog
func GetTier(toolID string) (models.ToolTier, bool) {
	return defaultRegistry.Tier(toolID)
}

// FamilyOf looks up a tool's family in the built-in catalog
func FamilyOf(toolID string) (models.ToolFamily, bool) {
	return defaultRegistry.Family(toolID)
}

// ResolveFamilies resolves owned tool ids against the built-in catalog
func ResolveFamilies(toolIDs []string) []models.ToolFamily {
	return defaultRegistry.ResolveFamilies(toolIDs)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func cloneTier(t models.ToolTier) models.ToolTier {
	if t.ExcludedPlatforms != nil {
		t.ExcludedPlatforms = append([]string(nil), t.ExcludedPlatforms...)
	}
	if t.ExcludedLimitations != nil {
		lim := make(map[models.LimitationCategory]bool, len(t.ExcludedLimitations))
		for k, v := range t.ExcludedLimitations {
			lim[k] = v
		}
		t.ExcludedLimitations = lim
	}
	return t
}
