package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/facetrack/internal/media"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDataURL is returned when stored data is not a base64 data URL.
	ErrInvalidDataURL = errors.New("invalid data url")
)

// Recording is the metadata of a persisted recording.
type Recording struct {
	Key       string    `json:"key"`
	MIMEType  string    `json:"mime_type"`
	Extension string    `json:"extension"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filename returns the download name of the recording.
func (r *Recording) Filename() string {
	return (&media.Artifact{Extension: r.Extension}).Filename()
}

// RecordingRepository stores artifacts as base64 data URLs keyed by name.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Persist stores the artifact under key, replacing any previous recording.
func (r *RecordingRepository) Persist(ctx context.Context, key string, a *media.Artifact) error {
	if a == nil {
		return fmt.Errorf("persist %s: nil artifact", key)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recordings (key, mime_type, extension, size, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			mime_type = excluded.mime_type,
			extension = excluded.extension,
			size = excluded.size,
			data = excluded.data,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		key, a.MIMEType, a.Extension, a.Size(), EncodeDataURL(a.MIMEType, a.Data), createdAt, time.Now(),
	)
	return err
}

// Retrieve loads the artifact stored under key.
func (r *RecordingRepository) Retrieve(ctx context.Context, key string) (*media.Artifact, error) {
	var dataURL, ext string
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT data, extension, created_at FROM recordings WHERE key = ?`,
		key,
	).Scan(&dataURL, &ext, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	mimeType, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", key, err)
	}

	return &media.Artifact{
		Data:      data,
		MIMEType:  mimeType,
		Extension: ext,
		CreatedAt: createdAt,
	}, nil
}

// Get returns the metadata of the recording stored under key.
func (r *RecordingRepository) Get(ctx context.Context, key string) (*Recording, error) {
	rec := &Recording{}

	err := r.db.QueryRowContext(ctx,
		`SELECT key, mime_type, extension, size, created_at, updated_at
		 FROM recordings WHERE key = ?`,
		key,
	).Scan(&rec.Key, &rec.MIMEType, &rec.Extension, &rec.Size, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return rec, nil
}

// List returns the metadata of all recordings, newest first.
func (r *RecordingRepository) List(ctx context.Context) ([]*Recording, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, mime_type, extension, size, created_at, updated_at
		 FROM recordings ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec := &Recording{}
		if err := rows.Scan(&rec.Key, &rec.MIMEType, &rec.Extension, &rec.Size, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// Delete removes the recording stored under key.
func (r *RecordingRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recordings WHERE key = ?`, key)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// EncodeDataURL renders data as "data:<mime>;base64,<payload>".
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL parses a base64 data URL.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	return mimeType, data, nil
}
