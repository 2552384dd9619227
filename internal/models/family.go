package models

import (
	"fmt"
	"strings"
)

// ToolFamily is a category of key-programming devices that share one vendor baseline
type ToolFamily string

const (
	FamilyAutel    ToolFamily = "autel"
	FamilySmartPro ToolFamily = "smartPro"
	FamilyLonsdor  ToolFamily = "lonsdor"
	FamilyVVDI     ToolFamily = "vvdi"
)

// Families lists every tool family in canonical display order
var Families = []ToolFamily{FamilyAutel, FamilySmartPro, FamilyLonsdor, FamilyVVDI}

// ParseToolFamily resolves a family name case-insensitively
func ParseToolFamily(s string) (ToolFamily, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	for _, f := range Families {
		if strings.ToLower(string(f)) == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown tool family: %q", s)
}

// Valid reports whether f is one of the known families
func (f ToolFamily) Valid() bool {
	return f.Order() >= 0
}

// Order returns the canonical position of f, or -1 for unknown families
func (f ToolFamily) Order() int {
	for i, known := range Families {
		if known == f {
			return i
		}
	}
	return -1
}

// SortFamilies orders families canonically in place and returns the slice
func SortFamilies(fams []ToolFamily) []ToolFamily {
	// insertion sort; the set never holds more than a handful of entries
	for i := 1; i < len(fams); i++ {
		for j := i; j > 0 && fams[j].Order() < fams[j-1].Order(); j-- {
			fams[j], fams[j-1] = fams[j-1], fams[j]
		}
	}
	return fams
}
