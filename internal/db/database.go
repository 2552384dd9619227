package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"locksmith-coverage/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		make TEXT NOT NULL COLLATE NOCASE,
		model TEXT NOT NULL COLLATE NOCASE,
		year_start INTEGER NOT NULL,
		year_end INTEGER NOT NULL,
		platform_tag TEXT NOT NULL DEFAULT '',
		chips TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (make, model, year_start, year_end)
	);

	CREATE TABLE IF NOT EXISTS baselines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		make TEXT NOT NULL COLLATE NOCASE,
		model TEXT NOT NULL COLLATE NOCASE,
		year_start INTEGER NOT NULL,
		year_end INTEGER NOT NULL,
		tool_family TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		chips TEXT NOT NULL DEFAULT '[]',
		cables TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS limitations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		baseline_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		cables TEXT NOT NULL DEFAULT '[]',
		context TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (baseline_id) REFERENCES baselines(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_baselines_vehicle ON baselines(make, model, year_start, year_end);
	CREATE INDEX IF NOT EXISTS idx_baselines_family ON baselines(tool_family);
	CREATE INDEX IF NOT EXISTS idx_limitations_baseline ON limitations(baseline_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// InsertVehicle adds a vehicle, or refreshes the platform details of an
// existing one with the same make, model and year range. v.ID is set.
func (db *Database) InsertVehicle(v *models.Vehicle) error {
	id, err := upsertVehicle(db.conn, v)
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

func upsertVehicle(ex execer, v *models.Vehicle) (int64, error) {
	chips, err := encodeList(v.Chips)
	if err != nil {
		return 0, err
	}
	yearEnd := v.YearEnd
	if yearEnd == 0 {
		yearEnd = v.YearStart
	}

	_, err = ex.Exec(`
		INSERT INTO vehicles (make, model, year_start, year_end, platform_tag, chips)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (make, model, year_start, year_end) DO UPDATE SET
			platform_tag = CASE WHEN excluded.platform_tag != '' THEN excluded.platform_tag ELSE vehicles.platform_tag END,
			chips = CASE WHEN excluded.chips != '[]' THEN excluded.chips ELSE vehicles.chips END
	`, v.Make, v.Model, v.YearStart, yearEnd, v.PlatformTag, chips)
	if err != nil {
		return 0, fmt.Errorf("upsert vehicle: %w", err)
	}

	var id int64
	err = ex.QueryRow(
		`SELECT id FROM vehicles WHERE make = ? AND model = ? AND year_start = ? AND year_end = ?`,
		v.Make, v.Model, v.YearStart, yearEnd,
	).Scan(&id)
	return id, err
}

const vehicleColumns = `id, make, model, year_start, year_end, platform_tag, chips, created_at`

// GetVehicle retrieves a vehicle by ID
func (db *Database) GetVehicle(id int64) (*models.Vehicle, error) {
	row := db.conn.QueryRow(`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)

	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindVehicle returns the vehicle whose year range covers year. A zero
// year matches any range.
func (db *Database) FindVehicle(mk, model string, year int) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE make = ? AND model = ?`
	args := []any{mk, model}
	if year > 0 {
		query += ` AND year_start <= ? AND year_end >= ?`
		args = append(args, year, year)
	}
	query += ` ORDER BY (year_end - year_start), id LIMIT 1`

	v, err := scanVehicle(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s %d", ErrVehicleNotFound, mk, model, year)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVehicles returns vehicles matching the make, model and year filters
func (db *Database) ListVehicles(q models.VehicleQuery) ([]models.Vehicle, error) {
	conditions, args := vehicleConditions(q)
	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY make, model, year_start, year_end" + pagination(q)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(s scanner) (models.Vehicle, error) {
	var v models.Vehicle
	var chips string
	if err := s.Scan(&v.ID, &v.Make, &v.Model, &v.YearStart, &v.YearEnd, &v.PlatformTag, &chips, &v.CreatedAt); err != nil {
		return v, err
	}
	if err := decodeList(chips, &v.Chips); err != nil {
		return v, err
	}
	return v, nil
}

// InsertBaseline adds a single baseline record with its limitations
func (db *Database) InsertBaseline(b *models.CoverageBaseline) error {
	records := []models.CoverageBaseline{*b}
	if _, err := db.InsertBaselineBatch(records); err != nil {
		return err
	}
	*b = records[0]
	return nil
}

// InsertBaselineBatch inserts baselines in one transaction, registering the
// vehicle range of each record. IDs are written back into the records.
func (db *Database) InsertBaselineBatch(records []models.CoverageBaseline) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	baselineStmt, err := tx.Prepare(`
		INSERT INTO baselines
		(make, model, year_start, year_end, tool_family, status, confidence, platform, chips, cables)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer baselineStmt.Close()

	limitStmt, err := tx.Prepare(`
		INSERT INTO limitations (baseline_id, category, cables, context, source)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer limitStmt.Close()

	var count int64
	for i := range records {
		b := &records[i]
		if b.YearEnd == 0 {
			b.YearEnd = b.YearStart
		}
		chips, err := encodeList(b.Chips)
		if err != nil {
			return 0, err
		}
		cables, err := encodeList(b.Cables)
		if err != nil {
			return 0, err
		}

		result, err := baselineStmt.Exec(
			b.Make, b.Model, b.YearStart, b.YearEnd, string(b.ToolFamily),
			b.Status.String(), string(b.Confidence), b.Platform, chips, cables,
		)
		if err != nil {
			return 0, fmt.Errorf("insert baseline %s %s: %w", b.Make, b.Model, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, err
		}

		for _, l := range b.Limitations {
			lc, err := encodeList(l.Cables)
			if err != nil {
				return 0, err
			}
			if _, err := limitStmt.Exec(id, string(l.Category), lc, l.Context, l.Source); err != nil {
				return 0, fmt.Errorf("insert limitation: %w", err)
			}
		}

		if _, err := upsertVehicle(tx, &models.Vehicle{
			Make: b.Make, Model: b.Model, YearStart: b.YearStart, YearEnd: b.YearEnd,
			PlatformTag: b.Platform, Chips: b.Chips,
		}); err != nil {
			return 0, err
		}

		b.ID = id
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Target resolves a concrete vehicle year for assessment: the stored range's
// platform details narrowed to year, plus every baseline covering that year.
// An unregistered vehicle is returned bare with no baselines.
func (db *Database) Target(mk, model string, year int) (models.Vehicle, []models.CoverageBaseline, error) {
	target := models.Vehicle{Make: mk, Model: model, YearStart: year, YearEnd: year}

	stored, err := db.FindVehicle(mk, model, year)
	switch {
	case errors.Is(err, ErrVehicleNotFound):
	case err != nil:
		return target, nil, err
	default:
		target.ID = stored.ID
		target.Make = stored.Make
		target.Model = stored.Model
		target.PlatformTag = stored.PlatformTag
		target.Chips = stored.Chips
	}

	baselines, err := db.BaselinesForVehicle(mk, model, year)
	if err != nil {
		return target, nil, err
	}
	return target, baselines, nil
}

// VehicleBaselines returns a stored vehicle and the baselines recorded for
// exactly its year range
func (db *Database) VehicleBaselines(id int64) (*models.Vehicle, []models.CoverageBaseline, error) {
	v, err := db.GetVehicle(id)
	if err != nil {
		return nil, nil, err
	}
	all, err := db.BaselinesForVehicle(v.Make, v.Model, v.YearStart)
	if err != nil {
		return nil, nil, err
	}

	var matched []models.CoverageBaseline
	for _, b := range all {
		if b.YearStart == v.YearStart && b.YearEnd == v.YearEnd {
			matched = append(matched, b)
		}
	}
	return v, matched, nil
}

const baselineColumns = `id, make, model, year_start, year_end, tool_family, status, confidence, platform, chips, cables`

// BaselinesForVehicle returns every baseline whose year range covers year.
// A zero year returns all ranges for the make and model.
func (db *Database) BaselinesForVehicle(mk, model string, year int) ([]models.CoverageBaseline, error) {
	return db.ListBaselines(models.VehicleQuery{Make: mk, Model: model, Year: year})
}

// ListBaselines retrieves baselines based on query parameters
func (db *Database) ListBaselines(q models.VehicleQuery) ([]models.CoverageBaseline, error) {
	conditions, args := vehicleConditions(q)
	if q.ToolFamily != "" {
		conditions = append(conditions, "tool_family = ?")
		args = append(args, string(q.ToolFamily))
	}

	query := `SELECT ` + baselineColumns + ` FROM baselines`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY make, model, year_start, year_end, id" + pagination(q)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.CoverageBaseline
	index := make(map[int64]int)
	for rows.Next() {
		var b models.CoverageBaseline
		var family, status, confidence, chips, cables string
		err := rows.Scan(
			&b.ID, &b.Make, &b.Model, &b.YearStart, &b.YearEnd,
			&family, &status, &confidence, &b.Platform, &chips, &cables,
		)
		if err != nil {
			return nil, err
		}
		b.ToolFamily = models.ToolFamily(family)
		b.Status = models.ParseCoverageStatus(status)
		b.Confidence = models.Confidence(confidence)
		if err := decodeList(chips, &b.Chips); err != nil {
			return nil, err
		}
		if err := decodeList(cables, &b.Cables); err != nil {
			return nil, err
		}
		index[b.ID] = len(results)
		results = append(results, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := db.attachLimitations(results, index); err != nil {
		return nil, err
	}
	return results, nil
}

func (db *Database) attachLimitations(results []models.CoverageBaseline, index map[int64]int) error {
	if len(results) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(results))
	args := make([]any, 0, len(results))
	for _, b := range results {
		placeholders = append(placeholders, "?")
		args = append(args, b.ID)
	}

	rows, err := db.conn.Query(`
		SELECT baseline_id, category, cables, context, source
		FROM limitations
		WHERE baseline_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY id
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var baselineID int64
		var l models.Limitation
		var category, cables string
		if err := rows.Scan(&baselineID, &category, &cables, &l.Context, &l.Source); err != nil {
			return err
		}
		l.Category = models.LimitationCategory(category)
		if err := decodeList(cables, &l.Cables); err != nil {
			return err
		}
		i := index[baselineID]
		results[i].Limitations = append(results[i].Limitations, l)
	}
	return rows.Err()
}

func vehicleConditions(q models.VehicleQuery) ([]string, []any) {
	var conditions []string
	var args []any

	if q.Make != "" {
		conditions = append(conditions, "make = ?")
		args = append(args, q.Make)
	}
	if q.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, q.Model)
	}
	if q.Year > 0 {
		conditions = append(conditions, "year_start <= ? AND year_end >= ?")
		args = append(args, q.Year, q.Year)
	}
	return conditions, args
}

func pagination(q models.VehicleQuery) string {
	if q.Limit <= 0 {
		return ""
	}
	clause := fmt.Sprintf(" LIMIT %d", q.Limit)
	if q.Offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", q.Offset)
	}
	return clause
}

// Stats summarizes the stored coverage data
type Stats struct {
	TotalVehicles    int64                       `json:"total_vehicles"`
	TotalBaselines   int64                       `json:"total_baselines"`
	TotalLimitations int64                       `json:"total_limitations"`
	ByFamily         map[models.ToolFamily]int64 `json:"baselines_by_family"`
	ByStatus         map[string]int64            `json:"baselines_by_status"`
}

// GetStats returns database statistics
func (db *Database) GetStats() (*Stats, error) {
	stats := &Stats{
		ByFamily: make(map[models.ToolFamily]int64),
		ByStatus: make(map[string]int64),
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM vehicles", &stats.TotalVehicles},
		{"SELECT COUNT(*) FROM baselines", &stats.TotalBaselines},
		{"SELECT COUNT(*) FROM limitations", &stats.TotalLimitations},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	rows, err := db.conn.Query(`SELECT tool_family, status, COUNT(*) FROM baselines GROUP BY tool_family, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var family, status string
		var n int64
		if err := rows.Scan(&family, &status, &n); err != nil {
			return nil, err
		}
		stats.ByFamily[models.ToolFamily(family)] += n
		if status == "" {
			status = "unknown"
		}
		stats.ByStatus[status] += n
	}
	return stats, rows.Err()
}

func encodeList(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string, dest *[]string) error {
	if raw == "" || raw == "[]" {
		*dest = nil
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}
