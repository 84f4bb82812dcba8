package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/photo-tagger/internal/database"
)

// photoColumns is the column list every photo query selects. The
// fingerprint is cast to text so NULL rows scan cleanly.
const photoColumns = `
	id, original_name, mime, status,
	title, description, category, keywords,
	quality_score, quality_issues, error,
	phash, dhash, fingerprint::text,
	uploaded_at, analyzed_at
`

// PhotoRepository provides PostgreSQL-backed photo metadata storage.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new PostgreSQL photo repository.
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

// Save stores or replaces the full photo record (upsert on ID).
func (r *PhotoRepository) Save(ctx context.Context, photo *database.StoredPhoto) error {
	query := `
		INSERT INTO photos (
			id, original_name, mime, status,
			title, description, category, keywords,
			quality_score, quality_issues, error,
			phash, dhash, fingerprint,
			uploaded_at, analyzed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			original_name = EXCLUDED.original_name,
			mime = EXCLUDED.mime,
			status = EXCLUDED.status,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			keywords = EXCLUDED.keywords,
			quality_score = EXCLUDED.quality_score,
			quality_issues = EXCLUDED.quality_issues,
			error = EXCLUDED.error,
			phash = EXCLUDED.phash,
			dhash = EXCLUDED.dhash,
			fingerprint = EXCLUDED.fingerprint,
			analyzed_at = EXCLUDED.analyzed_at
	`

	uploadedAt := photo.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, query,
		photo.ID,
		photo.OriginalName,
		photo.MIME,
		photo.Status,
		photo.Title,
		photo.Description,
		photo.Category,
		pq.Array(photo.Keywords),
		photo.QualityScore,
		pq.Array(photo.QualityIssues),
		photo.Error,
		nullString(photo.PHash),
		nullString(photo.DHash),
		nullVector(photo.Vector),
		uploadedAt,
		nullTime(photo.AnalyzedAt),
	)
	if err != nil {
		return fmt.Errorf("save photo: %w", err)
	}
	return nil
}

// Get retrieves a photo record by ID, returns nil if not found.
func (r *PhotoRepository) Get(ctx context.Context, id string) (*database.StoredPhoto, error) {
	row := r.pool.QueryRow(ctx, "SELECT"+photoColumns+"FROM photos WHERE id = $1", id)

	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query photo: %w", err)
	}
	return photo, nil
}

// List returns all photo records ordered by upload time.
func (r *PhotoRepository) List(ctx context.Context) ([]database.StoredPhoto, error) {
	rows, err := r.pool.Query(ctx, "SELECT"+photoColumns+"FROM photos ORDER BY uploaded_at, id")
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []database.StoredPhoto
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// UpdateMetadata replaces the editable metadata of a record.
func (r *PhotoRepository) UpdateMetadata(ctx context.Context, id, title, description, category string, keywords []string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE photos
		SET title = $2, description = $3, category = $4, keywords = $5
		WHERE id = $1
	`, id, title, description, category, pq.Array(keywords))
	if err != nil {
		return fmt.Errorf("update photo metadata: %w", err)
	}
	return requireRow(result, id)
}

// UpdateStatus moves a record through the analysis lifecycle.
func (r *PhotoRepository) UpdateStatus(ctx context.Context, id, status, errorMsg string) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE photos SET status = $2, error = $3 WHERE id = $1",
		id, status, errorMsg)
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes a photo record. Deleting a missing record is not an error.
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM photos WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// Count returns the total number of photo records.
func (r *PhotoRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// SaveFingerprint attaches the perceptual fingerprint to a record.
func (r *PhotoRepository) SaveFingerprint(ctx context.Context, id, pHash, dHash string, vector []float32) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE photos
		SET phash = $2, dhash = $3, fingerprint = $4
		WHERE id = $1
	`, id, nullString(pHash), nullString(dHash), nullVector(vector))
	if err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return requireRow(result, id)
}

// FindNearDuplicates finds records whose fingerprint vector is within
// maxDistance (cosine) of the query, nearest first. The pHash argument
// is unused here; pgvector does the matching on the luma vector.
func (r *PhotoRepository) FindNearDuplicates(ctx context.Context, _ string, vector []float32, limit int, maxDistance float64) ([]database.NearDuplicate, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	// Use a transaction to raise ef_search for better recall
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT id, fingerprint <=> $1::vector AS distance
		FROM photos
		WHERE fingerprint IS NOT NULL
		  AND fingerprint <=> $1::vector <= $2
		ORDER BY distance
		LIMIT $3
	`

	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(vector), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("query near duplicates: %w", err)
	}
	defer rows.Close()

	var hits []database.NearDuplicate
	for rows.Next() {
		var hit database.NearDuplicate
		if err := rows.Scan(&hit.ID, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan near duplicate: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate near duplicates: %w", err)
	}
	return hits, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPhoto reads one photo row in photoColumns order.
func scanPhoto(s scanner) (*database.StoredPhoto, error) {
	var photo database.StoredPhoto
	var phash, dhash, fingerprint sql.NullString
	var analyzedAt sql.NullTime

	err := s.Scan(
		&photo.ID,
		&photo.OriginalName,
		&photo.MIME,
		&photo.Status,
		&photo.Title,
		&photo.Description,
		&photo.Category,
		pq.Array(&photo.Keywords),
		&photo.QualityScore,
		pq.Array(&photo.QualityIssues),
		&photo.Error,
		&phash,
		&dhash,
		&fingerprint,
		&photo.UploadedAt,
		&analyzedAt,
	)
	if err != nil {
		return nil, err
	}

	photo.PHash = phash.String
	photo.DHash = dhash.String
	if analyzedAt.Valid {
		photo.AnalyzedAt = analyzedAt.Time
	}
	if fingerprint.Valid {
		var vec pgvector.Vector
		if err := vec.Scan(fingerprint.String); err != nil {
			return nil, fmt.Errorf("parse fingerprint vector: %w", err)
		}
		photo.Vector = vec.Slice()
	}
	return &photo, nil
}

// nullString maps empty strings to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullVector maps empty vectors to SQL NULL.
func nullVector(vector []float32) any {
	if len(vector) == 0 {
		return nil
	}
	return pgvector.NewVector(vector)
}

// requireRow converts a zero-row update into a not-found error.
func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("photo %s not found", id)
	}
	return nil
}
