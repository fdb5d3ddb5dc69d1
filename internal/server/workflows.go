package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"onboard/internal/domain"
	"onboard/internal/engine"
)

// NewWorkflowService exposes the workflow-template catalog under
// /api/workflows.
func NewWorkflowService(e engine.Engine, auth AuthConfig, log zerolog.Logger) http.Handler {
	// The group roots at /api so the collection lives at /api/workflows
	// without a trailing slash.
	router, _, group := newService("Onboard Workflow API", "/api", auth, log)
	registerWorkflows(group, e)
	return router
}

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/workflows",
		Summary:       "Create a workflow template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkflowRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowTemplate `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin)
		if authErr != nil {
			return nil, authErr
		}
		steps := make([]domain.Step, 0, len(input.Body.Steps))
		for _, s := range input.Body.Steps {
			steps = append(steps, domain.Step{
				Title:            s.Title,
				AssignedRole:     s.AssignedRole,
				StepDurationDays: s.StepDurationDays,
			})
		}
		wf, err := e.CreateTemplate(ctx, engine.TemplateOptions{
			Name:             input.Body.Name,
			Description:      input.Body.Description,
			Steps:            steps,
			AllottedTimeDays: input.Body.AllottedTimeDays,
			CreatedBy:        principal.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowTemplate `json:"body"`
		}{Body: wf}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/workflows",
		Summary:     "List workflow templates",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WorkflowsResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowsResponse `json:"body"`
		}{Body: WorkflowsResponse{Workflows: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/workflows/{id}",
		Summary:     "Get a workflow template",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.WorkflowTemplate `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee); authErr != nil {
			return nil, authErr
		}
		wf, err := e.GetTemplate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowTemplate `json:"body"`
		}{Body: wf}, nil
	})
}
