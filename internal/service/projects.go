package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
	"github.com/happyypeet/vibe-guide-demo-total/internal/store"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectStore is the persistence surface for projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
	SaveDocuments(ctx context.Context, id uuid.UUID, requirements string, docs *models.DocumentSet) error
}

// Completions is the slice of the AI client the project service needs.
type Completions interface {
	GenerateQuestions(ctx context.Context, description string) ([]string, error)
	GenerateDocuments(ctx context.Context, description, requirements string) (*models.DocumentSet, error)
}

// Projects implements the project lifecycle: describe, clarify, generate.
// Question generation is free; a full document run costs GenerationCost and
// goes through the ledger guard.
type Projects struct {
	store     ProjectStore
	ai        Completions
	ledger    *Ledger
	aiTimeout time.Duration
}

func NewProjects(s ProjectStore, ai Completions, ledger *Ledger, aiTimeout time.Duration) *Projects {
	return &Projects{store: s, ai: ai, ledger: ledger, aiTimeout: aiTimeout}
}

func (s *Projects) Create(ctx context.Context, userID uuid.UUID, req models.CreateProjectRequest) (*models.Project, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("title and description are required")
	}
	p := &models.Project{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      "draft",
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// Get returns a project only to its owner; anything else reads as not found.
func (s *Projects) Get(ctx context.Context, userID, id uuid.UUID) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (s *Projects) List(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

func (s *Projects) Update(ctx context.Context, userID, id uuid.UUID, req models.UpdateProjectRequest) (*models.Project, error) {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		p.Title = req.Title
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.Requirements != "" {
		p.Requirements = req.Requirements
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Projects) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, id)
}

// Questions generates clarifying questions for a description. Free of charge,
// but still bounded by the completion timeout.
func (s *Projects) Questions(ctx context.Context, description string) ([]string, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()
	return s.ai.GenerateQuestions(ctx, description)
}

// GenerateDocuments runs the five-document generation under the ledger
// guard: the balance is checked up front, the completion calls and the
// persistence of their output are the guarded work, and the debit happens
// only once all of it succeeded. A timeout or API failure leaves the balance
// untouched.
func (s *Projects) GenerateDocuments(ctx context.Context, userID uuid.UUID, req models.DocumentsRequest) (*models.DocumentSet, error) {
	project, err := s.Get(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	work := func(ctx context.Context) (*models.DocumentSet, error) {
		ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
		defer cancel()

		docs, err := s.ai.GenerateDocuments(ctx, req.Description, req.Requirements)
		if err != nil {
			return nil, fmt.Errorf("document generation: %w", err)
		}
		if err := s.store.SaveDocuments(ctx, project.ID, req.Requirements, docs); err != nil {
			return nil, fmt.Errorf("save documents: %w", err)
		}
		return docs, nil
	}

	return ExecuteGuarded(ctx, s.ledger, userID, GenerationCost, "project "+project.ID.String(), work)
}
