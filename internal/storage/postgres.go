package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStorage keeps objects in the kv_objects table. The schema is
// created by the application's goose migrations.
type PostgresStorage struct {
	db      *sql.DB
	baseURL string
	logger  *slog.Logger
}

// OpenPostgres opens a database/sql handle using the pgx driver and checks
// the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresStorage wraps an open database. URLs are built from baseURL,
// which should point at the application's file handler.
func NewPostgresStorage(db *sql.DB, baseURL string, logger *slog.Logger) *PostgresStorage {
	logger.Info("initialized postgres storage", "base_url", baseURL)
	return &PostgresStorage{db: db, baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

const (
	pgUpsert = `INSERT INTO kv_objects (key, data, content_type, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, content_type = EXCLUDED.content_type, updated_at = EXCLUDED.updated_at`

	pgInsert = `INSERT INTO kv_objects (key, data, content_type, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO NOTHING`

	pgSelect = `SELECT data, content_type, updated_at FROM kv_objects WHERE key = $1`
	pgDelete = `DELETE FROM kv_objects WHERE key = $1`
	pgExists = `SELECT EXISTS (SELECT 1 FROM kv_objects WHERE key = $1)`
)

func (s *PostgresStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}
	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	buf, err := io.ReadAll(src)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}
	if opts.MaxSize > 0 && int64(len(buf)) > opts.MaxSize {
		return &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
	}

	query := pgUpsert
	if !opts.Overwrite {
		query = pgInsert
	}
	res, err := s.db.ExecContext(ctx, query, key, buf, DetectContentType(opts.ContentType, key, buf), time.Now().UTC())
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}
	if !opts.Overwrite {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}
	s.logger.Debug("stored object in postgres", "key", key, "size", len(buf))
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var (
		data        []byte
		contentType string
		updatedAt   time.Time
	)
	err := s.db.QueryRowContext(ctx, pgSelect, key).Scan(&data, &contentType, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}
	return io.NopCloser(bytes.NewReader(data)), ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: updatedAt,
	}, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, pgDelete, key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

func (s *PostgresStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}
	return s.baseURL + "/" + key, nil
}

func (s *PostgresStorage) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, pgExists, key).Scan(&ok); err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}
	return ok, nil
}
