package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/ecosync/internal/weather"
)

const schema = `CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	query TEXT NOT NULL,
	city TEXT,
	lat REAL,
	lon REAL,
	parameters TEXT,
	response TEXT,
	series TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS queries_created_at ON queries(created_at);`

// SQLiteStore persists query history with the pure Go sqlite driver.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Printf("WARN: could not set WAL mode: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec QueryRecord) (QueryRecord, error) {
	rec, err := prepare(rec, s.now())
	if err != nil {
		return QueryRecord{}, err
	}

	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("encode parameters: %w", err)
	}
	var series []byte
	if rec.Series != nil {
		if series, err = json.Marshal(rec.Series); err != nil {
			return QueryRecord{}, fmt.Errorf("encode series: %w", err)
		}
	}

	var lat, lon sql.NullFloat64
	if c := rec.Location.Coordinates; c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO queries(id, user_id, query, city, lat, lon, parameters, response, series, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.UserID, rec.Query, rec.Location.City, lat, lon,
		string(params), nullText(rec.Response), nullText(series), rec.Timestamp.UnixNano())
	if err != nil {
		return QueryRecord{}, fmt.Errorf("insert query record: %w", err)
	}
	return rec, nil
}

const selectColumns = `SELECT id, user_id, query, city, lat, lon, parameters, response, series, created_at FROM queries`

func (s *SQLiteStore) Get(ctx context.Context, id string) (QueryRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return QueryRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list query records: %w", err)
	}
	defer rows.Close()

	out := make([]QueryRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queries WHERE created_at < ?`, cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune query records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (QueryRecord, error) {
	var (
		rec                     QueryRecord
		city, params, resp, ser sql.NullString
		lat, lon                sql.NullFloat64
		createdAt               int64
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Query, &city, &lat, &lon, &params, &resp, &ser, &createdAt); err != nil {
		return QueryRecord{}, err
	}

	rec.Location.City = city.String
	if lat.Valid && lon.Valid {
		rec.Location.Coordinates = &weather.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &rec.Parameters); err != nil {
			return QueryRecord{}, fmt.Errorf("decode parameters of %s: %w", rec.ID, err)
		}
	}
	if resp.Valid {
		rec.Response = json.RawMessage(resp.String)
	}
	if ser.Valid {
		if err := json.Unmarshal([]byte(ser.String), &rec.Series); err != nil {
			return QueryRecord{}, fmt.Errorf("decode series of %s: %w", rec.ID, err)
		}
	}
	rec.Timestamp = time.Unix(0, createdAt).UTC()
	return rec, nil
}

func nullText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
