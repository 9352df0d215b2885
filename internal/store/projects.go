package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
)

const projectColumns = `id, user_id, title, description,
	COALESCE(requirements, ''), COALESCE(user_journey_map, ''), COALESCE(product_requirements, ''),
	COALESCE(frontend_design, ''), COALESCE(backend_design, ''), COALESCE(database_design, ''),
	status, created_at, updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description,
		&p.Requirements, &p.UserJourneyMap, &p.ProductRequirements,
		&p.FrontendDesign, &p.BackendDesign, &p.DatabaseDesign,
		&p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	return s.Db.QueryRow(ctx,
		`INSERT INTO projects (id, user_id, title, description, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Title, p.Description, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(s.Db.QueryRow(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", id))
}

func (s *Store) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE projects SET title = $1, description = $2, requirements = $3, updated_at = now()
		 WHERE id = $4`,
		p.Title, p.Description, p.Requirements, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Db.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveDocuments stores a completed generation run onto the project row and
// flips its status in one statement.
func (s *Store) SaveDocuments(ctx context.Context, id uuid.UUID, requirements string, docs *models.DocumentSet) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE projects SET requirements = $1, user_journey_map = $2, product_requirements = $3,
		 frontend_design = $4, backend_design = $5, database_design = $6,
		 status = 'completed', updated_at = now()
		 WHERE id = $7`,
		requirements, docs.UserJourneyMap, docs.ProductRequirements,
		docs.FrontendDesign, docs.BackendDesign, docs.DatabaseDesign, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
