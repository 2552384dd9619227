package models

import "fmt"

// HeatStatus is the market-wide traffic-light bucket for a vehicle group
type HeatStatus string

const (
	HeatRed    HeatStatus = "RED"
	HeatOrange HeatStatus = "ORANGE"
	HeatYellow HeatStatus = "YELLOW"
	HeatGreen  HeatStatus = "GREEN"
)

// Severity orders buckets worst first (RED = 0)
func (h HeatStatus) Severity() int {
	switch h {
	case HeatRed:
		return 0
	case HeatOrange:
		return 1
	case HeatYellow:
		return 2
	case HeatGreen:
		return 3
	}
	return -1
}

// CoverageGroup is one heatmap cell
type CoverageGroup struct {
	VehicleGroupLabel     string       `json:"vehicle_group_label"`
	Make                  string       `json:"make"`
	Model                 string       `json:"model"`
	YearRange             string       `json:"year_range"`
	Status                HeatStatus   `json:"status"`
	ToolsClaimingCoverage []ToolFamily `json:"tools_claiming_coverage"`
	Barrier               string       `json:"barrier"`
	GapAssessment         string       `json:"gap_assessment"`
}

// HeatmapCounts aggregates groups per bucket
type HeatmapCounts struct {
	Red    int `json:"red"`
	Orange int `json:"orange"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
	Total  int `json:"total"`
}

// Add counts one group in its bucket
func (c *HeatmapCounts) Add(h HeatStatus) {
	switch h {
	case HeatRed:
		c.Red++
	case HeatOrange:
		c.Orange++
	case HeatYellow:
		c.Yellow++
	case HeatGreen:
		c.Green++
	}
	c.Total++
}

// Heatmap is the projection of a whole vehicle population
type Heatmap struct {
	Groups []CoverageGroup `json:"groups"`
	Counts HeatmapCounts   `json:"counts"`
}

func groupLabel(mk, model string, yearStart, yearEnd int) string {
	return fmt.Sprintf("%s %s %s", mk, model, YearRange(yearStart, yearEnd))
}

// GroupLabel formats a vehicle group label
func GroupLabel(mk, model string, yearStart, yearEnd int) string {
	return groupLabel(mk, model, yearStart, yearEnd)
}

// YearRange formats "2019-2023", or a single year when start == end
func YearRange(start, end int) string {
	if start == end || end == 0 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}
