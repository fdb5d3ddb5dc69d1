package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"onboard/internal/domain"
)

// TemplateOptions carries a new workflow-template definition. Steps keep
// their submitted order; stepOrder is assigned sequentially from 1.
type TemplateOptions struct {
	Name             string
	Description      string
	Steps            []domain.Step
	AllottedTimeDays int
	CreatedBy        string
}

func validStepRole(role string) bool {
	switch role {
	case domain.StepRoleAdmin, domain.StepRoleManager, domain.StepRoleEmployee:
		return true
	}
	return false
}

func (e Engine) CreateTemplate(ctx context.Context, opts TemplateOptions) (domain.WorkflowTemplate, error) {
	if opts.Name == "" {
		return domain.WorkflowTemplate{}, validationf("name is required")
	}
	if len(opts.Steps) == 0 {
		return domain.WorkflowTemplate{}, validationf("at least one step is required")
	}
	if opts.AllottedTimeDays < 0 {
		return domain.WorkflowTemplate{}, validationf("allottedTimeDays must not be negative")
	}
	steps := make([]domain.Step, len(opts.Steps))
	for i, s := range opts.Steps {
		if s.Title == "" {
			return domain.WorkflowTemplate{}, validationf("every step needs a title")
		}
		role := normalizeStepRole(s.AssignedRole)
		if !validStepRole(role) {
			return domain.WorkflowTemplate{}, validationf("step assignedRole must be admin, manager or employee")
		}
		if s.StepDurationDays < 0 {
			return domain.WorkflowTemplate{}, validationf("stepDurationDays must not be negative")
		}
		steps[i] = domain.Step{
			StepOrder:        i + 1,
			Title:            s.Title,
			AssignedRole:     role,
			StepDurationDays: s.StepDurationDays,
		}
	}
	wf := domain.WorkflowTemplate{
		ID:               uuid.New().String(),
		Name:             opts.Name,
		Description:      opts.Description,
		Steps:            steps,
		AllottedTimeDays: opts.AllottedTimeDays,
		CreatedAt:        e.now().UTC().Format(time.RFC3339),
	}
	if opts.CreatedBy != "" {
		wf.CreatedBy = &opts.CreatedBy
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return wf, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTemplate(ctx, tx, wf); err != nil {
		return wf, err
	}
	if err := tx.Commit(); err != nil {
		return wf, err
	}
	e.Log.Info().Str("template", wf.ID).Int("steps", len(steps)).Msg("workflow template created")
	return wf, nil
}

func (e Engine) GetTemplate(ctx context.Context, id string) (domain.WorkflowTemplate, error) {
	return e.Repo.GetTemplate(ctx, id)
}

func (e Engine) ListTemplates(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	return e.Repo.ListTemplates(ctx)
}
