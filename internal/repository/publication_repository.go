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

// PublicationRepository provides database access for publication records.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository creates a new instance of PublicationRepository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

const publicationColumns = `id, title, abstract, authors, publication_year, keywords, lakes, file_path, uploader, status, created_at, updated_at`

// Create inserts a new publication.
func (r *PublicationRepository) Create(ctx context.Context, p *models.Publication) error {
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

	const query = `INSERT INTO publications (id, title, abstract, authors, publication_year, keywords, lakes, file_path, uploader, status, created_at, updated_at) VALUES (:id, :title, :abstract, :authors, :publication_year, :keywords, :lakes, :file_path, :uploader, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create publication: %w", err)
	}
	return nil
}

// GetByID returns a publication by identifier.
func (r *PublicationRepository) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	query := fmt.Sprintf(`SELECT %s FROM publications WHERE id = $1 LIMIT 1`, publicationColumns)
	var p models.Publication
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find publication by id: %w", err)
	}
	return &p, nil
}

// List returns publications matching the filter with a total count.
func (r *PublicationRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.Publication, int, error) {
	baseQuery := `FROM publications WHERE 1=1`
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
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(lakes)", len(args)+1))
		args = append(args, filter.Lake)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(keywords) LIKE $%d)", len(args)+1, len(args)+1))
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", publicationColumns, baseQuery, pageSize, offset)

	var items []models.Publication
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list publications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count publications: %w", err)
	}

	return items, total, nil
}

// Update updates mutable fields of a publication.
func (r *PublicationRepository) Update(ctx context.Context, p *models.Publication) error {
	p.UpdatedAt = time.Now().UTC()
	const query = `UPDATE publications SET title = :title, abstract = :abstract, authors = :authors, publication_year = :publication_year, keywords = :keywords, lakes = :lakes, file_path = :file_path, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("update publication: %w", err)
	}
	return nil
}

// UpdateStatus records a moderation decision. The row must still be pending;
// sql.ErrNoRows is returned when another moderator got there first.
func (r *PublicationRepository) UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error {
	const query = `UPDATE publications SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, ts)
	if err != nil {
		return fmt.Errorf("update publication status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update publication status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a publication row.
func (r *PublicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM publications WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete publication: %w", err)
	}
	return nil
}
