package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const dateLayout = "2006-01-02"

// Storage provides SQLite database access for records, runs and matches.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// dsn enables foreign keys and a busy timeout on every connection.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *Storage) runMigrations() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRecords inserts or replaces records in one transaction
func (s *Storage) SaveRecords(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
	INSERT INTO records
	(id, date, amount, description, beneficiary, origin, is_context_only,
	 links_json, source, imported_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		date = excluded.date,
		amount = excluded.amount,
		description = excluded.description,
		beneficiary = excluded.beneficiary,
		origin = excluded.origin,
		is_context_only = excluded.is_context_only,
		links_json = CASE WHEN excluded.links_json = '[]' THEN records.links_json ELSE excluded.links_json END,
		source = excluded.source,
		updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record id is required")
		}
		links, err := encodeIDs(r.Links)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(
			r.ID,
			nullDate(r.Date),
			nullAmount(r.Amount),
			r.Description,
			r.Beneficiary,
			r.Origin,
			r.ContextOnly,
			links,
			r.Source,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

const recordColumns = `id, date, amount, description, beneficiary, origin, is_context_only,
	       links_json, source, imported_at, updated_at`

// GetRecord retrieves a record by id
func (s *Storage) GetRecord(id string) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return record, err
}

// ListRecords returns records matching the given filters, newest first
func (s *Storage) ListRecords(filters RecordFilters) (*RecordListResult, error) {
	var (
		where []string
		args  []any
	)
	if !filters.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filters.From.Format(dateLayout))
	}
	if !filters.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filters.To.Format(dateLayout))
	}
	if filters.Origin != "" {
		where = append(where, "origin = ?")
		args = append(args, filters.Origin)
	}
	if filters.ContextOnly != nil {
		where = append(where, "is_context_only = ?")
		args = append(args, *filters.ContextOnly)
	}
	if filters.Linked != nil {
		if *filters.Linked {
			where = append(where, "links_json != '[]'")
		} else {
			where = append(where, "links_json = '[]'")
		}
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	result := &RecordListResult{
		Records: make([]*Record, 0),
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`+clause, args...).Scan(&result.TotalCount); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM records` + clause + ` ORDER BY date DESC, id ASC`
	query, args = paginate(query, args, filters.Limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, record)
	}

	return result, rows.Err()
}

// UpdateLinks overwrites the link field of each record in one transaction
func (s *Storage) UpdateLinks(links map[string][]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateLinksTx(tx, links); err != nil {
		return err
	}
	return tx.Commit()
}

func updateLinksTx(tx *sql.Tx, links map[string][]string) error {
	now := time.Now().UTC()
	for id, ids := range links {
		encoded, err := encodeIDs(ids)
		if err != nil {
			return err
		}
		res, err := tx.Exec(`UPDATE records SET links_json = ?, updated_at = ? WHERE id = ?`, encoded, now, id)
		if err != nil {
			return fmt.Errorf("failed to update links of %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record    Record
		date      sql.NullString
		amount    sql.NullFloat64
		linksJSON string
	)
	err := row.Scan(
		&record.ID,
		&date,
		&amount,
		&record.Description,
		&record.Beneficiary,
		&record.Origin,
		&record.ContextOnly,
		&linksJSON,
		&record.Source,
		&record.ImportedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if date.Valid {
		if t, err := time.Parse(dateLayout, date.String); err == nil {
			record.Date = t
		}
	}
	record.Amount = math.NaN()
	if amount.Valid {
		record.Amount = amount.Float64
	}
	if record.Links, err = decodeIDs(linksJSON); err != nil {
		return nil, fmt.Errorf("record %s has malformed links: %w", record.ID, err)
	}

	return &record, nil
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func nullAmount(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func encodeIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeIDs(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}
