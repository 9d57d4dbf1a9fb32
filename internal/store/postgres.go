package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"weatherfav/internal/favorites"
	"weatherfav/internal/weather"
)

//go:embed schema.sql
var schema string

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

type Postgres struct {
	pool Pool
}

func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, rec favorites.Record) (favorites.Record, error) {
	w, err := encodeWeather(rec.Weather)
	if err != nil {
		return favorites.Record{}, fmt.Errorf("create favorite: %w", err)
	}

	var order int
	err = s.pool.QueryRow(ctx,
		`INSERT INTO favorites (id, latitude, longitude, time_zone, name, sort_order, is_current_location, is_favorite, weather)
		 SELECT $1, $2, $3, $4, $5, COALESCE(MAX(sort_order) + 1, 0), $6, $7, $8
		 FROM favorites
		 RETURNING sort_order`,
		rec.ID, rec.Latitude, rec.Longitude, rec.TimeZone, rec.Name, rec.IsCurrentLocation, rec.IsFavorite, w,
	).Scan(&order)
	if isUniqueViolation(err) {
		return favorites.Record{}, favorites.ErrDuplicate
	}
	if err != nil {
		return favorites.Record{}, fmt.Errorf("create favorite: %w", err)
	}

	out := rec.Clone()
	out.SortOrder = &order
	return out, nil
}

func (s *Postgres) FetchOrdered(ctx context.Context) ([]favorites.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, latitude, longitude, time_zone, name, sort_order, is_current_location, is_favorite, weather
		 FROM favorites
		 ORDER BY sort_order ASC NULLS LAST, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch favorites: %w", err)
	}
	defer rows.Close()

	result := []favorites.Record{}
	for rows.Next() {
		var r favorites.Record
		var raw []byte
		if err := rows.Scan(
			&r.ID, &r.Latitude, &r.Longitude, &r.TimeZone, &r.Name, &r.SortOrder, &r.IsCurrentLocation, &r.IsFavorite, &raw,
		); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		if r.Weather, err = decodeWeather(raw); err != nil {
			return nil, fmt.Errorf("decode weather for %s: %w", r.ID, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch favorites: %w", err)
	}
	return result, nil
}

func (s *Postgres) DeleteByIdentifier(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM favorites
		 WHERE ctid IN (SELECT ctid FROM favorites WHERE id = $1 LIMIT 1)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// RewriteSortOrder applies every position in one transaction.
func (s *Postgres) RewriteSortOrder(ctx context.Context, ids []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE favorites SET sort_order = $2, updated_at = NOW() WHERE id = $1`,
			id, i,
		); err != nil {
			return fmt.Errorf("reorder %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateWeather(ctx context.Context, id string, report weather.Report) error {
	w, err := encodeWeather(&report)
	if err != nil {
		return fmt.Errorf("update weather: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE favorites SET weather = $2, updated_at = NOW() WHERE id = $1`,
		id, w,
	)
	if err != nil {
		return fmt.Errorf("update weather: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return favorites.ErrNotFound
	}
	return nil
}

func encodeWeather(r *weather.Report) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func decodeWeather(raw []byte) (*weather.Report, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var r weather.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
