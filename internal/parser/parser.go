package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"locksmith-coverage/internal/models"
)

// Parser handles parsing of coverage baseline files
type Parser struct {
	format   string
	logger   *zap.Logger
	warnings []string
}

// NewParser creates a new parser with the specified format. An empty format
// is resolved from the file extension in ParseFile.
func NewParser(format string, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{format: strings.ToLower(strings.TrimSpace(format)), logger: logger.Named("parser")}
}

// Warnings returns the per-record problems collected by the last parse
func (p *Parser) Warnings() []string {
	return p.warnings
}

// ParseFile parses a baseline file
func (p *Parser) ParseFile(filename string) ([]models.CoverageBaseline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	format := p.format
	if format == "" {
		format = FormatFromPath(filename)
	}
	return p.parse(file, format)
}

// Parse parses baseline records from r in the parser's format
func (p *Parser) Parse(r io.Reader) ([]models.CoverageBaseline, error) {
	return p.parse(r, p.format)
}

func (p *Parser) parse(r io.Reader, format string) ([]models.CoverageBaseline, error) {
	p.warnings = nil
	switch format {
	case "csv":
		return p.parseCSV(r)
	case "json", "ndjson", "jsonl":
		return p.parseJSON(r)
	case "yaml", "yml":
		return p.parseYAML(r)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// FormatFromPath maps a file extension to a parser format
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func (p *Parser) warn(line int, err error) {
	msg := fmt.Sprintf("line %d: %v", line, err)
	p.warnings = append(p.warnings, msg)
	p.logger.Warn("skipping baseline record", zap.Int("line", line), zap.Error(err))
}

// parseCSV parses CSV formatted baselines
func (p *Parser) parseCSV(r io.Reader) ([]models.CoverageBaseline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"make", "model", "tool_family", "status"} {
		if _, ok := indices[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var results []models.CoverageBaseline
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}

		raw, err := recordToRaw(record, indices)
		if err != nil {
			p.warn(lineNum, err)
			continue
		}
		b, err := raw.toBaseline()
		if err != nil {
			p.warn(lineNum, err)
			continue
		}
		results = append(results, b)
	}

	return results, nil
}

// recordToRaw converts a CSV record to a raw baseline
func recordToRaw(record []string, indices map[string]int) (rawBaseline, error) {
	var raw rawBaseline
	var err error

	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	raw.Make = getValue("make")
	raw.Model = getValue("model")
	raw.ToolFamily = getValue("tool_family")
	raw.Status = getValue("status")
	raw.Confidence = getValue("confidence")
	raw.Platform = getValue("platform")
	raw.Chips = splitList(getValue("chips"))
	raw.Cables = splitList(getValue("cables"))

	if raw.YearStart, err = parseYear(getValue("year_start")); err != nil {
		return raw, fmt.Errorf("invalid year_start: %w", err)
	}
	if raw.YearEnd, err = parseYear(getValue("year_end")); err != nil {
		return raw, fmt.Errorf("invalid year_end: %w", err)
	}
	if y := getValue("year"); y != "" && raw.YearStart == 0 {
		if raw.YearStart, err = parseYear(y); err != nil {
			return raw, fmt.Errorf("invalid year: %w", err)
		}
	}

	for _, cell := range splitList(getValue("limitations")) {
		raw.Limitations = append(raw.Limitations, parseLimitationCell(cell))
	}
	return raw, nil
}

// parseLimitationCell reads "category:cable1|cable2"
func parseLimitationCell(cell string) rawLimitation {
	category, cables, _ := strings.Cut(cell, ":")
	l := rawLimitation{Category: strings.TrimSpace(category)}
	for _, c := range strings.Split(cables, "|") {
		if c = strings.TrimSpace(c); c != "" {
			l.Cables = append(l.Cables, c)
		}
	}
	return l
}

func splitList(cell string) []string {
	var out []string
	for _, s := range strings.Split(cell, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseYear(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseJSON parses a JSON array of baselines or newline-delimited JSON
func (p *Parser) parseJSON(r io.Reader) ([]models.CoverageBaseline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var raws []rawBaseline
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return p.convert(raws), nil
	}
	return p.parseJSONLines(bytes.NewReader(trimmed))
}

// DecodeBaseline reads one JSON baseline object, normalizing and validating
// it the same way file ingestion does
func DecodeBaseline(r io.Reader) (models.CoverageBaseline, error) {
	var raw rawBaseline
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return models.CoverageBaseline{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw.toBaseline()
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.CoverageBaseline, error) {
	var results []models.CoverageBaseline
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(line, ",")

		var raw rawBaseline
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			p.warn(lineNum, err)
			continue
		}
		b, err := raw.toBaseline()
		if err != nil {
			p.warn(lineNum, err)
			continue
		}
		results = append(results, b)
	}

	return results, scanner.Err()
}

// parseYAML parses either a top-level list or a document with a baselines key
func (p *Parser) parseYAML(r io.Reader) ([]models.CoverageBaseline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var raws []rawBaseline
	if err := yaml.Unmarshal(data, &raws); err != nil {
		var doc struct {
			Baselines []rawBaseline `yaml:"baselines"`
		}
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		raws = doc.Baselines
	}
	return p.convert(raws), nil
}

func (p *Parser) convert(raws []rawBaseline) []models.CoverageBaseline {
	results := make([]models.CoverageBaseline, 0, len(raws))
	for i, raw := range raws {
		b, err := raw.toBaseline()
		if err != nil {
			p.warn(i+1, err)
			continue
		}
		results = append(results, b)
	}
	return results
}

// ValidateBaseline validates a baseline record
func ValidateBaseline(b *models.CoverageBaseline) []string {
	errors := validateRange(b.Make, b.Model, b.YearStart, b.YearEnd)
	if !b.ToolFamily.Valid() {
		errors = append(errors, fmt.Sprintf("unknown tool_family %q", b.ToolFamily))
	}
	return errors
}

// ValidateVehicle validates a vehicle range before registration
func ValidateVehicle(v *models.Vehicle) []string {
	return validateRange(v.Make, v.Model, v.YearStart, v.YearEnd)
}

func validateRange(mk, model string, yearStart, yearEnd int) []string {
	var errors []string

	if strings.TrimSpace(mk) == "" {
		errors = append(errors, "make is required")
	}
	if strings.TrimSpace(model) == "" {
		errors = append(errors, "model is required")
	}
	if yearStart < minYear || yearStart > maxYear {
		errors = append(errors, fmt.Sprintf("year_start must be between %d and %d", minYear, maxYear))
	}
	if yearEnd != 0 && yearEnd < yearStart {
		errors = append(errors, "year_end cannot precede year_start")
	}

	return errors
}

const (
	minYear = 1980
	maxYear = 2100
)
