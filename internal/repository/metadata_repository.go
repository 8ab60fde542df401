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

// MetadataRepository provides database access for dataset metadata records.
type MetadataRepository struct {
	db *sqlx.DB
}

// NewMetadataRepository creates a new instance of MetadataRepository.
func NewMetadataRepository(db *sqlx.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

const metadataColumns = `id, title, email, period, description, lake, file_path, uploader, status, created_at, updated_at`

// Create inserts a new metadata record.
func (r *MetadataRepository) Create(ctx context.Context, m *models.MetadataRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = models.StatusPending
	}

	const query = `INSERT INTO metadata_records (id, title, email, period, description, lake, file_path, uploader, status, created_at, updated_at) VALUES (:id, :title, :email, :period, :description, :lake, :file_path, :uploader, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create metadata record: %w", err)
	}
	return nil
}

// GetByID returns a metadata record by identifier.
func (r *MetadataRepository) GetByID(ctx context.Context, id string) (*models.MetadataRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata_records WHERE id = $1 LIMIT 1`, metadataColumns)
	var m models.MetadataRecord
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find metadata record by id: %w", err)
	}
	return &m, nil
}

// List returns metadata records matching the filter with a total count.
func (r *MetadataRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.MetadataRecord, int, error) {
	baseQuery := `FROM metadata_records WHERE 1=1`
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
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", metadataColumns, baseQuery, pageSize, offset)

	var items []models.MetadataRecord
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list metadata records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count metadata records: %w", err)
	}

	return items, total, nil
}

// Update updates mutable fields of a metadata record.
func (r *MetadataRepository) Update(ctx context.Context, m *models.MetadataRecord) error {
	m.UpdatedAt = time.Now().UTC()
	const query = `UPDATE metadata_records SET title = :title, email = :email, period = :period, description = :description, lake = :lake, file_path = :file_path, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("update metadata record: %w", err)
	}
	return nil
}

// UpdateStatus records a moderation decision. The row must still be pending;
// sql.ErrNoRows is returned when another moderator got there first.
func (r *MetadataRepository) UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error {
	const query = `UPDATE metadata_records SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, ts)
	if err != nil {
		return fmt.Errorf("update metadata record status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update metadata record status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a metadata record row.
func (r *MetadataRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM metadata_records WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete metadata record: %w", err)
	}
	return nil
}
