package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// New opens the database at path, applies the schema and returns a store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection. The schema must already exist.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Recordings() store.Recordings { return &recordings{db: s.db} }

func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqliteStore) Close() error { return s.db.Close() }

func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }

type recordings struct{ db *sql.DB }

const recordingColumns = `id, file_path, begin_date, audio_length, source, sha256sum, disk_usage`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*model.Recording, error) {
	var (
		r      model.Recording
		begin  sql.NullInt64
		length sql.NullInt64
		source sql.NullString
		sum    sql.NullString
		usage  sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.FilePath, &begin, &length, &source, &sum, &usage); err != nil {
		return nil, err
	}
	if begin.Valid {
		r.BeginDate = fromMicros(begin.Int64)
	}
	if length.Valid {
		r.AudioLength = model.Seconds(time.Duration(length.Int64) * time.Microsecond)
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
		begin = toMicros(in.BeginDate)
	}
	if in.AudioLength > 0 {
		length = in.AudioLength.Duration().Microseconds()
	}
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO recording (id, file_path, begin_date, audio_length, source, sha256sum, disk_usage)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT (file_path) DO NOTHING
    `, id, in.FilePath, begin, length, in.Source, in.SHA256Sum, in.DiskUsage)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	out, err := r.queryOne(ctx, `SELECT `+recordingColumns+` FROM recording WHERE file_path = ?`, in.FilePath)
	if err != nil {
		return nil, false, err
	}
	return out, n > 0, nil
}

func (r *recordings) GetByID(ctx context.Context, id string) (*model.Recording, error) {
	rec, err := r.queryOne(ctx, `SELECT `+recordingColumns+` FROM recording WHERE id = ?`, id)
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
		query += ` WHERE begin_date BETWEEN ? AND ?`
		args = append(args, toMicros(*req.Start), toMicros(*req.End))
	case req.Start != nil:
		query += ` WHERE begin_date >= ?`
		args = append(args, toMicros(*req.Start))
	case req.End != nil:
		query += ` WHERE begin_date <= ?`
		args = append(args, toMicros(*req.End))
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM recording WHERE id = ?`, id)
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
	return r.listPaths(ctx, `SELECT id, file_path FROM recording ORDER BY file_path`)
}

func (r *recordings) ListMissingChecksum(ctx context.Context) ([]model.RecordingPath, error) {
	return r.listPaths(ctx, `SELECT id, file_path FROM recording WHERE sha256sum IS NULL ORDER BY file_path`)
}

func (r *recordings) SetChecksum(ctx context.Context, id, sha256sum string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recording SET sha256sum = ? WHERE id = ?`, sha256sum, id)
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
		sum         sql.NullInt64
		first, last sql.NullInt64
	)
	row := r.db.QueryRowContext(ctx, `
        SELECT count(*), sum(audio_length), min(begin_date), max(begin_date) FROM recording
    `)
	if err := row.Scan(&out.NumberOfRecordings, &sum, &first, &last); err != nil {
		return nil, err
	}
	if sum.Valid {
		d := model.Seconds(time.Duration(sum.Int64) * time.Microsecond)
		out.SumOfDurations = &d
	}
	if first.Valid {
		t := fromMicros(first.Int64)
		out.FirstRecordingBegin = &t
	}
	if last.Valid {
		t := fromMicros(last.Int64)
		out.LastRecordingBegin = &t
	}
	return &out, nil
}

func (r *recordings) scanInstant(ctx context.Context, query string) (*time.Time, error) {
	var v sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	t := fromMicros(v.Int64)
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
        WHERE begin_date < ?
        ORDER BY begin_date DESC
        LIMIT 1
    `, toMicros(ts))
}

func (r *recordings) FindEarliestFrom(ctx context.Context, ts time.Time) (*model.Recording, error) {
	return r.queryOne(ctx, `
        SELECT `+recordingColumns+` FROM recording
        WHERE begin_date >= ?
        ORDER BY begin_date ASC
        LIMIT 1
    `, toMicros(ts))
}
