package models

import (
	"encoding/json"
	"strings"
)

// CoverageStatus is the categorized form of a vendor coverage claim.
// Raw vendor text is parsed once at ingestion by ParseCoverageStatus and
// never inspected again.
type CoverageStatus int

const (
	StatusUnknown CoverageStatus = iota
	StatusNone
	StatusCheck
	StatusPartial
	StatusFull
)

// ParseCoverageStatus maps free-text vendor status ("Yes", "Partial*",
// "Check", "No", "") to a CoverageStatus. Unrecognized text is Unknown.
func ParseCoverageStatus(raw string) CoverageStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return StatusUnknown
	case strings.Contains(s, "partial"), strings.Contains(s, "limited"):
		return StatusPartial
	case strings.Contains(s, "check"), strings.Contains(s, "verify"):
		return StatusCheck
	case s == "no", s == "none", s == "n", strings.HasPrefix(s, "not "),
		strings.HasPrefix(s, "no "), strings.Contains(s, "unsupported"):
		return StatusNone
	case s == "y", s == "full", s == "supported", strings.HasPrefix(s, "yes"):
		return StatusFull
	}
	return StatusUnknown
}

// String returns the wire form used by vendor data and API output
func (s CoverageStatus) String() string {
	switch s {
	case StatusFull:
		return "Yes"
	case StatusPartial:
		return "Partial"
	case StatusCheck:
		return "Check"
	case StatusNone:
		return "No"
	}
	return ""
}

// Covered reports whether the status claims any coverage at all
func (s CoverageStatus) Covered() bool {
	return s == StatusCheck || s == StatusPartial || s == StatusFull
}

// Rank orders statuses by strength of coverage. None and Unknown share the floor.
func (s CoverageStatus) Rank() int {
	switch s {
	case StatusFull:
		return 3
	case StatusPartial:
		return 2
	case StatusCheck:
		return 1
	}
	return 0
}

func (s CoverageStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *CoverageStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseCoverageStatus(raw)
	return nil
}

func (s *CoverageStatus) UnmarshalText(text []byte) error {
	*s = ParseCoverageStatus(string(text))
	return nil
}

// Confidence is the certainty attached to a verdict or baseline record
type Confidence string

const (
	ConfidenceUnset  Confidence = ""
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts any casing and common abbreviations; anything else is unset
func ParseConfidence(raw string) Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "h", "verified", "confirmed":
		return ConfidenceHigh
	case "medium", "med", "m", "moderate":
		return ConfidenceMedium
	case "low", "l", "unverified":
		return ConfidenceLow
	}
	return ConfidenceUnset
}

// Rank orders confidence levels; unset ranks with low
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	}
	return 0
}
