package feature

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS features (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	priority    INTEGER NOT NULL,
	category    TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	description TEXT    NOT NULL,
	steps       TEXT    NOT NULL,
	passes      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_features_queue ON features (passes, priority, id);
`

// Store provides access to the feature database of one project.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the feature database in projectDir.
func Open(projectDir string) (*Store, error) {
	path := filepath.Join(projectDir, DBFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open feature database: %w", err)
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create features schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HasFeatures reports whether the project already has features, checking
// the legacy JSON list first and then the database. It opens the database
// directly because it runs before the API server starts.
func HasFeatures(projectDir string) bool {
	if _, err := os.Stat(filepath.Join(projectDir, LegacyListFile)); err == nil {
		return true
	}

	dbPath := filepath.Join(projectDir, DBFileName)
	if _, err := os.Stat(dbPath); err != nil {
		return false
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return false
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM features").Scan(&count); err != nil {
		// Database exists but is unreadable or has no features table.
		return false
	}
	return count > 0
}

// Create inserts a single feature at the end of the priority queue.
func (s *Store) Create(ctx context.Context, d Draft) (*Feature, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	steps, err := json.Marshal(d.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO features (priority, category, name, description, steps, passes)
		VALUES ((SELECT COALESCE(MAX(priority), 0) + 1 FROM features), ?, ?, ?, ?, 0)`,
		d.Category, d.Name, d.Description, string(steps))
	if err != nil {
		return nil, fmt.Errorf("insert feature: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// BulkCreate inserts features in order, assigning consecutive priorities
// starting after the current maximum. Returns the number created.
func (s *Store) BulkCreate(ctx context.Context, drafts []Draft) (int, error) {
	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			return 0, fmt.Errorf("feature %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var start int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(priority), 0) FROM features").Scan(&start); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO features (priority, category, name, description, steps, passes)
		VALUES (?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, d := range drafts {
		steps, err := json.Marshal(d.Steps)
		if err != nil {
			return 0, fmt.Errorf("encode steps: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, start+int64(i)+1, d.Category, d.Name, d.Description, string(steps)); err != nil {
			return 0, fmt.Errorf("insert feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(drafts), nil
}

// Get returns a feature by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Feature, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, priority, category, name, description, steps, passes
		FROM features WHERE id = ?`, id)
	return scanFeature(row)
}

// Next returns the lowest-priority pending feature, or ErrNoPending.
func (s *Store) Next(ctx context.Context) (*Feature, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, priority, category, name, description, steps, passes
		FROM features WHERE passes = 0
		ORDER BY priority ASC, id ASC LIMIT 1`)
	f, err := scanFeature(row)
	if err == ErrNotFound {
		return nil, ErrNoPending
	}
	return f, err
}

// List returns a page of features ordered by (priority, id), applying the
// filter. The limit is clamped into [1, MaxListLimit]. The returned total
// counts all rows matching the filter, before pagination.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Feature, int, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = MaxListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := "1=1"
	args := []interface{}{}
	if filter.Passes != nil {
		where += " AND passes = ?"
		args = append(args, boolToInt(*filter.Passes))
	}
	if filter.Category != "" {
		where += " AND category = ?"
		args = append(args, filter.Category)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM features WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Random order is used for regression testing passes. It samples the
	// whole matching set, so offset does not apply.
	var query string
	if filter.Random {
		query = fmt.Sprintf(`
		SELECT id, priority, category, name, description, steps, passes
		FROM features WHERE %s ORDER BY RANDOM() LIMIT ?`, where)
		args = append(args, limit)
	} else {
		query = fmt.Sprintf(`
		SELECT id, priority, category, name, description, steps, passes
		FROM features WHERE %s ORDER BY priority ASC, id ASC LIMIT ? OFFSET ?`, where)
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, 0, err
		}
		features = append(features, *f)
	}
	return features, total, rows.Err()
}

// SetPasses updates the pass status of a feature. Passes is the only
// mutable field after creation.
func (s *Store) SetPasses(ctx context.Context, id int64, passes bool) (*Feature, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE features SET passes = ? WHERE id = ?", boolToInt(passes), id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Skip moves a pending feature to the end of the priority queue and
// returns its old and new priorities.
func (s *Store) Skip(ctx context.Context, id int64) (f *Feature, oldPriority int64, err error) {
	f, err = s.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if f.Passes {
		return nil, 0, ErrAlreadyPassing
	}

	oldPriority = f.Priority
	_, err = s.db.ExecContext(ctx, `
		UPDATE features
		SET priority = (SELECT COALESCE(MAX(priority), 0) + 1 FROM features)
		WHERE id = ?`, id)
	if err != nil {
		return nil, 0, err
	}

	f, err = s.Get(ctx, id)
	return f, oldPriority, err
}

// Delete removes a feature.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM features WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns passing/total counts with percentage rounded to one decimal.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(passes), 0) FROM features`).Scan(&st.Total, &st.Passing)
	if err != nil {
		return Stats{}, err
	}
	if st.Total > 0 {
		st.Percentage = math.Round(float64(st.Passing)/float64(st.Total)*1000) / 10
	}
	return st, nil
}

// AllPassing returns minimal summaries of every passing feature, without
// the list cap. Used by progress tracking to attribute newly passing work.
func (s *Store) AllPassing(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, name FROM features
		WHERE passes = 1 ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Category, &sm.Name); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeature(row rowScanner) (*Feature, error) {
	var f Feature
	var steps string
	var passes int
	err := row.Scan(&f.ID, &f.Priority, &f.Category, &f.Name, &f.Description, &steps, &passes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &f.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for feature %d: %w", f.ID, err)
	}
	f.Passes = passes != 0
	return &f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
