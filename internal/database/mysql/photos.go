package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/photo-tagger/internal/database"
)

// photoColumns is the column list every photo query selects.
const photoColumns = `
	id, original_name, mime, status,
	title, description, category, keywords,
	quality_score, quality_issues, error,
	phash, dhash, fingerprint,
	uploaded_at, analyzed_at
`

// PhotoRepository provides MySQL-backed photo metadata storage. List
// values (keywords, quality issues, the luma vector) are stored as JSON
// columns since MySQL has no native array or vector type.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new MySQL photo repository.
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			original_name = VALUES(original_name),
			mime = VALUES(mime),
			status = VALUES(status),
			title = VALUES(title),
			description = VALUES(description),
			category = VALUES(category),
			keywords = VALUES(keywords),
			quality_score = VALUES(quality_score),
			quality_issues = VALUES(quality_issues),
			error = VALUES(error),
			phash = VALUES(phash),
			dhash = VALUES(dhash),
			fingerprint = VALUES(fingerprint),
			analyzed_at = VALUES(analyzed_at)
	`

	keywords, err := marshalStrings(photo.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	issues, err := marshalStrings(photo.QualityIssues)
	if err != nil {
		return fmt.Errorf("marshal quality issues: %w", err)
	}
	vector, err := marshalVector(photo.Vector)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}

	uploadedAt := photo.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}

	_, err = r.pool.Exec(ctx, query,
		photo.ID,
		photo.OriginalName,
		photo.MIME,
		photo.Status,
		photo.Title,
		photo.Description,
		photo.Category,
		keywords,
		photo.QualityScore,
		issues,
		photo.Error,
		nullString(photo.PHash),
		nullString(photo.DHash),
		vector,
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
	row := r.pool.QueryRow(ctx, "SELECT"+photoColumns+"FROM photos WHERE id = ?", id)

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
	if err := r.requireExists(ctx, id); err != nil {
		return err
	}

	data, err := marshalStrings(keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE photos
		SET title = ?, description = ?, category = ?, keywords = ?
		WHERE id = ?
	`, title, description, category, data, id)
	if err != nil {
		return fmt.Errorf("update photo metadata: %w", err)
	}
	return nil
}

// UpdateStatus moves a record through the analysis lifecycle.
func (r *PhotoRepository) UpdateStatus(ctx context.Context, id, status, errorMsg string) error {
	if err := r.requireExists(ctx, id); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx,
		"UPDATE photos SET status = ?, error = ? WHERE id = ?",
		status, errorMsg, id)
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}
	return nil
}

// Delete removes a photo record. Deleting a missing record is not an error.
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM photos WHERE id = ?", id); err != nil {
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
	if err := r.requireExists(ctx, id); err != nil {
		return err
	}

	data, err := marshalVector(vector)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE photos
		SET phash = ?, dhash = ?, fingerprint = ?
		WHERE id = ?
	`, nullString(pHash), nullString(dHash), data, id)
	if err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return nil
}

// FindNearDuplicates finds records whose perceptual hash is within
// maxDistance of the query hash, nearest first. MySQL has no vector
// type, so matching XORs the 64-bit hashes and counts differing bits;
// maxDistance on the 0..1 scale maps to a bit threshold out of 64. The
// vector argument is unused here.
func (r *PhotoRepository) FindNearDuplicates(ctx context.Context, pHash string, _ []float32, limit int, maxDistance float64) ([]database.NearDuplicate, error) {
	if pHash == "" || limit <= 0 {
		return nil, nil
	}
	if _, err := strconv.ParseUint(pHash, 16, 64); err != nil {
		return nil, fmt.Errorf("invalid perceptual hash %q: %w", pHash, err)
	}

	bits := int(maxDistance * 64)

	query := `
		SELECT id,
		       BIT_COUNT(CAST(CONV(phash, 16, 10) AS UNSIGNED) ^ CAST(CONV(?, 16, 10) AS UNSIGNED)) AS hamming
		FROM photos
		WHERE phash IS NOT NULL
		HAVING hamming <= ?
		ORDER BY hamming, id
		LIMIT ?
	`

	rows, err := r.pool.Query(ctx, query, pHash, bits, limit)
	if err != nil {
		return nil, fmt.Errorf("query near duplicates: %w", err)
	}
	defer rows.Close()

	var hits []database.NearDuplicate
	for rows.Next() {
		var id string
		var hamming int
		if err := rows.Scan(&id, &hamming); err != nil {
			return nil, fmt.Errorf("scan near duplicate: %w", err)
		}
		hits = append(hits, database.NearDuplicate{
			ID:       id,
			Distance: float64(hamming) / 64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate near duplicates: %w", err)
	}
	return hits, nil
}

// requireExists fails with a not-found error when no record has the ID.
// MySQL reports zero affected rows for updates that leave values
// unchanged, so existence has to be checked separately.
func (r *PhotoRepository) requireExists(ctx context.Context, id string) error {
	var one int
	err := r.pool.QueryRow(ctx, "SELECT 1 FROM photos WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("photo %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("check photo: %w", err)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPhoto reads one photo row in photoColumns order.
func scanPhoto(s scanner) (*database.StoredPhoto, error) {
	var photo database.StoredPhoto
	var keywords, issues []byte
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
		&keywords,
		&photo.QualityScore,
		&issues,
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

	if err := json.Unmarshal(keywords, &photo.Keywords); err != nil {
		return nil, fmt.Errorf("parse keywords: %w", err)
	}
	if err := json.Unmarshal(issues, &photo.QualityIssues); err != nil {
		return nil, fmt.Errorf("parse quality issues: %w", err)
	}
	photo.PHash = phash.String
	photo.DHash = dhash.String
	if analyzedAt.Valid {
		photo.AnalyzedAt = analyzedAt.Time
	}
	if fingerprint.Valid {
		if err := json.Unmarshal([]byte(fingerprint.String), &photo.Vector); err != nil {
			return nil, fmt.Errorf("parse fingerprint vector: %w", err)
		}
	}
	return &photo, nil
}

// marshalStrings encodes a string list for a JSON column. Nil encodes
// as an empty list so the NOT NULL columns always hold valid JSON.
func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

// marshalVector encodes the luma vector for its nullable JSON column.
func marshalVector(vector []float32) (any, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	return json.Marshal(vector)
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
