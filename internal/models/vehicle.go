package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Vehicle represents a make/model/year range with its platform details
type Vehicle struct {
	ID          int64     `json:"id,omitempty"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	YearStart   int       `json:"year_start"`
	YearEnd     int       `json:"year_end"`
	PlatformTag string    `json:"platform_tag,omitempty"`
	Chips       []string  `json:"chips,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Key identifies the vehicle for memoization and grouping
func (v Vehicle) Key() string {
	return vehicleKey(v.Make, v.Model, v.YearStart, v.YearEnd)
}

// Label is the human-readable group label, e.g. "Ford F-150 2021-2023"
func (v Vehicle) Label() string {
	return groupLabel(v.Make, v.Model, v.YearStart, v.YearEnd)
}

// VehicleQuery represents filter parameters for baseline and vehicle searches
type VehicleQuery struct {
	Make       string
	Model      string
	Year       int
	ToolFamily ToolFamily
	Limit      int
	Offset     int
}

// OwnedToolSet is a locksmith's inventory: opaque tool ids plus owned cables
type OwnedToolSet struct {
	ToolIDs []string `json:"tool_ids"`
	Cables  []string `json:"cables,omitempty"`
}

// HasCable reports whether the set includes the cable, ignoring case
func (o OwnedToolSet) HasCable(cable string) bool {
	for _, c := range o.Cables {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(cable)) {
			return true
		}
	}
	return false
}

// Hash is an order-independent digest of the set, usable as a memoization key
func (o OwnedToolSet) Hash() string {
	ids := normalizedSorted(o.ToolIDs)
	cables := normalizedSorted(o.Cables)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",") + "#" + strings.Join(cables, ",")))
	return hex.EncodeToString(sum[:8])
}

func normalizedSorted(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OwnedProfile is a stored owned-tool profile for one locksmith
type OwnedProfile struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Tools     OwnedToolSet `json:"tools"`
	UpdatedAt time.Time    `json:"updated_at"`
}
