package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the recording table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recording (
            id UUID PRIMARY KEY,
            file_path TEXT NOT NULL UNIQUE,
            begin_date TIMESTAMPTZ,
            audio_length INTERVAL,
            source TEXT,
            sha256sum TEXT,
            disk_usage BIGINT
        )`,
		`CREATE INDEX IF NOT EXISTS recording_begin_date_idx ON recording (begin_date)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Recordings() store.Recordings { return &recordings{db: s.db} }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *pgStore) Close() error { return s.db.Close() }

// Bootstrap performs a connectivity check and applies the schema.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil // No DSN configured, skip bootstrap
	}

	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return EnsureSchema(ctx, db)
}

type recordings struct{ db *sql.DB }

const recordingColumns = `id::text, file_path, begin_date, EXTRACT(EPOCH FROM audio_length)::float8, source, sha256sum, disk_usage`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*model.Recording, error) {
	var (
		r      model.Recording
		begin  sql.NullTime
		length sql.NullFloat64
		source sql.NullString
		sum    sql.NullString
		usage  sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.FilePath, &begin, &length, &source, &sum, &usage); err != nil {
		return nil, err
	}
	if begin.Valid {
		r.BeginDate = begin.Time.UTC()
	}
	if length.Valid {
		r.AudioLength = model.NewSeconds(length.Float64)
	}
	if source.Valid {
		r.Source = &source.String
	}
	if sum.Valid {
		r.SHA256Sum = &sum.String
	}
	if usage.Valid {
		r.DiskUsage = &usage.Int64
	}
	return &r, nil
}

func (r *recordings) queryOne(ctx context.Context, query string, args ...any) (*model.Recording, error) {
	rec, err := scanRecording(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *recordings) Upsert(ctx context.Context, in *model.Recording) (*model.Recording, bool, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	var begin, length any
	if !in.BeginDate.IsZero() {
		begin = in.BeginDate.UTC()
	}
	if in.AudioLength > 0 {
		length = in.AudioLength.Float()
	}
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO recording (id, file_path, begin_date, audio_length, source, sha256sum, disk_usage)
        VALUES ($1, $2, $3, make_interval(secs => $4::float8), $5, $6, $7)
        ON CONFLICT (file_path) DO NOTHING
    `, id, in.FilePath, begin, length, in.Source, in.SHA256Sum, in.DiskUsage)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	out, err := r.queryOne(ctx, `SELECT `+recordingColumns+` FROM recording WHERE file_path = $1`, in.FilePath)
	if err != nil {
		return nil, false, err
	}
	return out, n > 0, nil
}

func (r *recordings) GetByID(ctx context.Context, id string) (*model.Recording, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("recording %s: %w", id, model.ErrNotFound)
	}
	rec, err := r.queryOne(ctx, `SELECT `+recordingColumns+` FROM recording WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("recording %s: %w", id, model.ErrNotFound)
	}
	return rec, nil
}

func (r *recordings) List(ctx context.Context, req model.ListRecordingsRequest) ([]*model.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recording`
	var args []any
	switch {
	case req.Start != nil && req.End != nil:
		query += ` WHERE begin_date BETWEEN $1 AND $2`
		args = append(args, req.Start.UTC(), req.End.UTC())
	case req.Start != nil:
		query += ` WHERE begin_date >= $1`
		args = append(args, req.Start.UTC())
	case req.End != nil:
		query += ` WHERE begin_date <= $1`
		args = append(args, req.End.UTC())
	}
	query += ` ORDER BY begin_date ASC, file_path ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *recordings) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recording WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *recordings) listPaths(ctx context.Context, query string) ([]model.RecordingPath, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.RecordingPath
	for rows.Next() {
		var p model.RecordingPath
		if err := rows.Scan(&p.ID, &p.FilePath); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *recordings) ListPaths(ctx context.Context) ([]model.RecordingPath, error) {
	return r.listPaths(ctx, `SELECT id::text, file_path FROM recording ORDER BY file_path`)
}

func (r *recordings) ListMissingChecksum(ctx context.Context) ([]model.RecordingPath, error) {
	return r.listPaths(ctx, `SELECT id::text, file_path FROM recording WHERE sha256sum IS NULL ORDER BY file_path`)
}

func (r *recordings) SetChecksum(ctx context.Context, id, sha256sum string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recording SET sha256sum = $1 WHERE id = $2`, sha256sum, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *recordings) Summary(ctx context.Context) (*model.RecordingsSummary, error) {
	var (
		out         model.RecordingsSummary
		sum         sql.NullFloat64
		first, last sql.NullTime
	)
	row := r.db.QueryRowContext(ctx, `
        SELECT
            count(*),
            EXTRACT(EPOCH FROM sum(audio_length))::float8,
            min(begin_date),
            max(begin_date)
        FROM recording
    `)
	if err := row.Scan(&out.NumberOfRecordings, &sum, &first, &last); err != nil {
		return nil, err
	}
	if sum.Valid {
		d := model.NewSeconds(sum.Float64)
		out.SumOfDurations = &d
	}
	if first.Valid {
		t := first.Time.UTC()
		out.FirstRecordingBegin = &t
	}
	if last.Valid {
		t := last.Time.UTC()
		out.LastRecordingBegin = &t
	}
	return &out, nil
}

func (r *recordings) scanInstant(ctx context.Context, query string) (*time.Time, error) {
	var v sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	t := v.Time.UTC()
	return &t, nil
}

func (r *recordings) EarliestBegin(ctx context.Context) (*time.Time, error) {
	return r.scanInstant(ctx, `SELECT min(begin_date) FROM recording`)
}

func (r *recordings) LatestEnd(ctx context.Context) (*time.Time, error) {
	return r.scanInstant(ctx, `SELECT max(begin_date + audio_length) FROM recording`)
}

func (r *recordings) FindLatestBefore(ctx context.Context, ts time.Time) (*model.Recording, error) {
	return r.queryOne(ctx, `
        SELECT `+recordingColumns+` FROM recording
        WHERE begin_date < $1
        ORDER BY begin_date DESC
        LIMIT 1
    `, ts.UTC())
}

func (r *recordings) FindEarliestFrom(ctx context.Context, ts time.Time) (*model.Recording, error) {
	return r.queryOne(ctx, `
        SELECT `+recordingColumns+` FROM recording
        WHERE begin_date >= $1
        ORDER BY begin_date ASC
        LIMIT 1
    `, ts.UTC())
}
