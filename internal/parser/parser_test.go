package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locksmith-coverage/internal/models"
)

func TestParse_CSV(t *testing.T) {
	input := `make,model,year_start,year_end,tool_family,status,confidence,platform,cables,limitations
Ford,F-150,2021,2023,autel,Yes,high,CAN FD,,
Toyota,Camry,2018,,lonsdor,Partial,medium,,APB112,akl_blocked:APB112|LKE;pin_required
# commented out
BMW,X5,2020,2021,obdstar,Yes,,,,
Honda,Civic,abc,2020,vvdi,Yes,,,,
`
	p := NewParser("csv", nil)
	got, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)

	want := []models.CoverageBaseline{
		{
			Make: "Ford", Model: "F-150", YearStart: 2021, YearEnd: 2023,
			ToolFamily: models.FamilyAutel, Status: models.StatusFull,
			Confidence: models.ConfidenceHigh, Platform: "CAN FD",
		},
		{
			Make: "Toyota", Model: "Camry", YearStart: 2018, YearEnd: 2018,
			ToolFamily: models.FamilyLonsdor, Status: models.StatusPartial,
			Confidence: models.ConfidenceMedium, Cables: []string{"APB112"},
			Limitations: []models.Limitation{
				{Category: models.LimitAKLBlocked, Cables: []string{"APB112", "LKE"}},
				{Category: models.LimitPINRequired},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("baselines mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, p.Warnings(), 2)
}

func TestParse_CSVMissingColumn(t *testing.T) {
	_, err := NewParser("csv", nil).Parse(strings.NewReader("make,model\nFord,F-150\n"))
	assert.Error(t, err)
}

func TestParse_JSONArray(t *testing.T) {
	input := `[
  {"make":"Ford","model":"Bronco","year_start":2022,"year_end":2024,"tool_family":"Smart Pro","status":"Check"},
  {"make":"Ford","model":"Bronco","year_start":2022,"year_end":2024,"tool_family":"vvdi","status":"No",
   "limitations":[{"category":"Dealer Only","context":"FCA SGW"}]}
]`
	got, err := NewParser("json", nil).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.FamilySmartPro, got[0].ToolFamily)
	assert.Equal(t, models.StatusCheck, got[0].Status)
	assert.Equal(t, models.StatusNone, got[1].Status)
	assert.Equal(t, models.LimitDealerOnly, got[1].Limitations[0].Category)
}

func TestParse_NDJSON(t *testing.T) {
	input := `{"make":"Kia","model":"Soul","year_start":2019,"tool_family":"autel","status":"Yes"}
not json
{"make":"Kia","model":"Soul","year_start":2019,"tool_family":"lonsdor","status":"Partial"}
`
	p := NewParser("ndjson", nil)
	got, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2019, got[1].YearEnd)
	require.Len(t, p.Warnings(), 1)
	assert.Contains(t, p.Warnings()[0], "line 2")
}

func TestParse_YAML(t *testing.T) {
	list := `
- make: Chevrolet
  model: Silverado
  year_start: 2019
  year_end: 2022
  tool_family: autel
  status: "Yes"
  platform: Global B
`
	got, err := NewParser("yaml", nil).Parse(strings.NewReader(list))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Global B", got[0].Platform)

	doc := `
baselines:
  - make: Chevrolet
    model: Tahoe
    year_start: 2021
    tool_family: vvdi
    status: Partial
    limitations:
      - category: server_required
`
	got, err = NewParser("yml", nil).Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.LimitServerRequired, got[0].Limitations[0].Category)
}

func TestParseFile_FormatFromExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baselines.csv")
	require.NoError(t, os.WriteFile(path, []byte("make,model,year_start,tool_family,status\nFord,Escape,2020,autel,Yes\n"), 0o600))

	got, err := NewParser("", nil).ParseFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Escape", got[0].Model)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := NewParser("xml", nil).Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestValidateBaseline(t *testing.T) {
	ok := models.CoverageBaseline{Make: "Ford", Model: "F-150", YearStart: 2021, YearEnd: 2023, ToolFamily: models.FamilyAutel}
	assert.Empty(t, ValidateBaseline(&ok))

	bad := models.CoverageBaseline{YearStart: 2024, YearEnd: 2020, ToolFamily: "obdstar"}
	errs := ValidateBaseline(&bad)
	assert.Len(t, errs, 4)
}

func TestValidateVehicle(t *testing.T) {
	ok := models.Vehicle{Make: "Toyota", Model: "Camry", YearStart: 2018}
	assert.Empty(t, ValidateVehicle(&ok))

	bad := models.Vehicle{Make: "Toyota", YearStart: 1970}
	assert.Equal(t, []string{"model is required", "year_start must be between 1980 and 2100"}, ValidateVehicle(&bad))
}

func TestDecodeBaseline(t *testing.T) {
	b, err := DecodeBaseline(strings.NewReader(`{
		"make": " Nissan ", "model": "Rogue", "year_start": 2021,
		"tool_family": "smart pro", "status": "YES", "confidence": "verified",
		"limitations": [{"category": "Dealer Only"}, {"category": ""}]
	}`))
	require.NoError(t, err)

	want := models.CoverageBaseline{
		Make: "Nissan", Model: "Rogue", YearStart: 2021, YearEnd: 2021,
		ToolFamily: models.FamilySmartPro, Status: models.StatusFull,
		Confidence:  models.ConfidenceHigh,
		Limitations: []models.Limitation{{Category: models.LimitDealerOnly}},
	}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("baseline mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeBaseline(strings.NewReader(`{"make": "Nissan", "tool_family": "autel"}`))
	assert.ErrorContains(t, err, "invalid baseline")

	_, err = DecodeBaseline(strings.NewReader(`{`))
	assert.ErrorContains(t, err, "invalid JSON")
}
