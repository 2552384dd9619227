package heatmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locksmith-coverage/internal/models"
)

func rec(mk, model string, start, end int, f models.ToolFamily, status string, lims ...models.LimitationCategory) models.CoverageBaseline {
	b := models.CoverageBaseline{
		Make:       mk,
		Model:      model,
		YearStart:  start,
		YearEnd:    end,
		ToolFamily: f,
		Status:     models.ParseCoverageStatus(status),
		Confidence: models.ConfidenceHigh,
	}
	for _, l := range lims {
		b.Limitations = append(b.Limitations, models.Limitation{Category: l})
	}
	return b
}

func TestProjectGroup_ScenarioD_AllEmptyIsRed(t *testing.T) {
	var records []models.CoverageBaseline
	for _, f := range models.Families {
		records = append(records, rec("Toyota", "bZ4X", 2023, 2024, f, ""))
	}

	g := ProjectGroup(records)

	assert.Equal(t, models.HeatRed, g.Status)
	assert.Empty(t, g.ToolsClaimingCoverage)
	assert.Equal(t, "no tool coverage reported", g.Barrier)
}

func TestProjectGroup_Buckets(t *testing.T) {
	cases := []struct {
		name    string
		records []models.CoverageBaseline
		want    models.HeatStatus
		tools   []models.ToolFamily
		barrier string
	}{
		{
			name: "explicit no everywhere",
			records: []models.CoverageBaseline{
				rec("Kia", "EV9", 2024, 2025, models.FamilyAutel, "No"),
				rec("Kia", "EV9", 2024, 2025, models.FamilyVVDI, "No"),
			},
			want:    models.HeatRed,
			tools:   []models.ToolFamily{},
			barrier: "no tool coverage reported",
		},
		{
			name: "partial and check only",
			records: []models.CoverageBaseline{
				rec("Ford", "Bronco", 2021, 2024, models.FamilyVVDI, "Partial", models.LimitServerRequired),
				rec("Ford", "Bronco", 2021, 2024, models.FamilyAutel, "Check"),
			},
			want:    models.HeatOrange,
			tools:   []models.ToolFamily{models.FamilyAutel, models.FamilyVVDI},
			barrier: "server_required",
		},
		{
			name: "full but low confidence",
			records: func() []models.CoverageBaseline {
				r := rec("Ford", "Escape", 2020, 2022, models.FamilyLonsdor, "Yes")
				r.Confidence = models.ConfidenceLow
				return []models.CoverageBaseline{r}
			}(),
			want:    models.HeatOrange,
			tools:   []models.ToolFamily{models.FamilyLonsdor},
			barrier: "partial support only",
		},
		{
			name: "full with limitation flags",
			records: []models.CoverageBaseline{
				rec("BMW", "X5", 2019, 2023, models.FamilyAutel, "Yes", models.LimitBenchRequired, models.LimitDealerOnly),
				rec("BMW", "X5", 2019, 2023, models.FamilyVVDI, "Partial"),
			},
			want:    models.HeatYellow,
			tools:   []models.ToolFamily{models.FamilyAutel, models.FamilyVVDI},
			barrier: "dealer_only, bench_required",
		},
		{
			name: "one clean full family",
			records: []models.CoverageBaseline{
				rec("Honda", "Civic", 2016, 2021, models.FamilySmartPro, "Yes"),
				rec("Honda", "Civic", 2016, 2021, models.FamilyAutel, "Yes", models.LimitPINRequired),
				rec("Honda", "Civic", 2016, 2021, models.FamilyVVDI, ""),
			},
			want:    models.HeatGreen,
			tools:   []models.ToolFamily{models.FamilyAutel, models.FamilySmartPro},
			barrier: "none",
		},
		{
			name: "unknown limitation does not flag",
			records: []models.CoverageBaseline{
				rec("Mazda", "CX-5", 2017, 2020, models.FamilyAutel, "Yes", "bring_snacks"),
			},
			want:    models.HeatGreen,
			tools:   []models.ToolFamily{models.FamilyAutel},
			barrier: "none",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := ProjectGroup(tc.records)
			assert.Equal(t, tc.want, g.Status)
			assert.Equal(t, tc.tools, g.ToolsClaimingCoverage)
			assert.Equal(t, tc.barrier, g.Barrier)
			assert.NotEmpty(t, g.GapAssessment)
		})
	}
}

func TestProject_GroupsSortsAndCounts(t *testing.T) {
	baselines := []models.CoverageBaseline{
		rec("Toyota", "Camry", 2018, 2023, models.FamilyAutel, "Yes"),
		rec("Ford", "F-150", 2021, 2023, models.FamilyAutel, "Partial"),
		rec("Toyota", "Camry", 2018, 2023, models.FamilyVVDI, "No"),
		rec("Ford", "F-150", 2015, 2020, models.FamilyLonsdor, "Yes", models.LimitAKLBlocked),
		rec("Chevrolet", "Bolt", 2017, 2023, models.FamilyAutel, ""),
	}

	hm := Project(baselines)

	labels := make([]string, len(hm.Groups))
	for i, g := range hm.Groups {
		labels[i] = g.VehicleGroupLabel
	}
	want := []string{
		"Chevrolet Bolt 2017-2023",
		"Ford F-150 2015-2020",
		"Ford F-150 2021-2023",
		"Toyota Camry 2018-2023",
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.HeatmapCounts{Red: 1, Orange: 1, Yellow: 1, Green: 1, Total: 4}, hm.Counts)
}

func TestWorstFirst_OrdersBySeverity(t *testing.T) {
	hm := Project([]models.CoverageBaseline{
		rec("Toyota", "Camry", 2018, 2023, models.FamilyAutel, "Yes"),
		rec("Ford", "F-150", 2021, 2023, models.FamilyAutel, "Partial"),
		rec("Ford", "F-150", 2015, 2020, models.FamilyLonsdor, "Yes", models.LimitAKLBlocked),
		rec("Chevrolet", "Bolt", 2017, 2023, models.FamilyAutel, ""),
		rec("Audi", "A4", 2017, 2020, models.FamilyVVDI, "Yes"),
	})

	sorted := WorstFirst(hm)

	var got []string
	for _, g := range sorted.Groups {
		got = append(got, string(g.Status)+" "+g.VehicleGroupLabel)
	}
	want := []string{
		"RED Chevrolet Bolt 2017-2023",
		"ORANGE Ford F-150 2021-2023",
		"YELLOW Ford F-150 2015-2020",
		"GREEN Audi A4 2017-2020",
		"GREEN Toyota Camry 2018-2023",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("severity order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, hm.Counts, sorted.Counts)
	assert.Equal(t, "Audi A4 2017-2020", hm.Groups[0].VehicleGroupLabel, "input left untouched")
}

func TestProject_IgnoresOwnership(t *testing.T) {
	baselines := []models.CoverageBaseline{rec("Nissan", "Rogue", 2021, 2024, models.FamilySmartPro, "Yes")}

	hm := Project(baselines)

	require.Len(t, hm.Groups, 1)
	assert.Equal(t, models.HeatGreen, hm.Groups[0].Status)
	assert.Equal(t, "Serviceable: full coverage via smartPro", hm.Groups[0].GapAssessment)
}

func TestProject_Empty(t *testing.T) {
	hm := Project(nil)

	assert.Empty(t, hm.Groups)
	assert.Equal(t, 0, hm.Counts.Total)
}
