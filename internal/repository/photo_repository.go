package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lakewatch/lakes-portal-api/internal/models"
)

// PhotoRepository provides database access for photo records.
type PhotoRepository struct {
	db *sqlx.DB
}

// NewPhotoRepository creates a new instance of PhotoRepository.
func NewPhotoRepository(db *sqlx.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

const photoColumns = `id, description, lake, capture_date, image_path, uploader, status, created_at, updated_at`

// Create inserts a new photo record.
func (r *PhotoRepository) Create(ctx context.Context, p *models.Photo) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = models.StatusPending
	}

	const query = `INSERT INTO photos (id, description, lake, capture_date, image_path, uploader, status, created_at, updated_at) VALUES (:id, :description, :lake, :capture_date, :image_path, :uploader, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

// GetByID returns a photo by identifier.
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := fmt.Sprintf(`SELECT %s FROM photos WHERE id = $1 LIMIT 1`, photoColumns)
	var p models.Photo
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find photo by id: %w", err)
	}
	return &p, nil
}

// List returns photos matching the filter with a total count.
func (r *PhotoRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.Photo, int, error) {
	baseQuery := `FROM photos WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Uploader != "" {
		conditions = append(conditions, fmt.Sprintf("uploader = $%d", len(args)+1))
		args = append(args, filter.Uploader)
	}
	if filter.Lake != "" {
		conditions = append(conditions, fmt.Sprintf("lake = $%d", len(args)+1))
		args = append(args, filter.Lake)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(description) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", photoColumns, baseQuery, pageSize, offset)

	var items []models.Photo
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list photos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count photos: %w", err)
	}

	return items, total, nil
}

// Update updates mutable fields of a photo.
func (r *PhotoRepository) Update(ctx context.Context, p *models.Photo) error {
	p.UpdatedAt = time.Now().UTC()
	const query = `UPDATE photos SET description = :description, lake = :lake, capture_date = :capture_date, image_path = :image_path, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return nil
}

// UpdateStatus records a moderation decision. The row must still be pending;
// sql.ErrNoRows is returned when another moderator got there first.
func (r *PhotoRepository) UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error {
	const query = `UPDATE photos SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, ts)
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update photo status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a photo row.
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM photos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}
