package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"onboard/internal/domain"
	"onboard/internal/engine"
	"onboard/internal/files"
)

// OnboardingConfig wires the onboarding service: the tracking engine, the
// document store and the upload cap.
type OnboardingConfig struct {
	Engine   engine.Engine
	Store    files.Store
	MaxFiles int
	Auth     AuthConfig
	Log      zerolog.Logger
}

// NewOnboardingService exposes instance tracking under /api/onboarding plus
// the /uploads static file tree.
func NewOnboardingService(cfg OnboardingConfig) http.Handler {
	router, _, group := newService("Onboard Tracking API", "/api/onboarding", cfg.Auth, cfg.Log)
	registerOnboarding(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	router.Post("/api/onboarding/{id}/documents", uploadHandler(cfg))
	router.Get("/uploads/{key}", serveUpload(cfg.Store))
	return router
}

// resolveTemplate turns the assign payload's template reference into the
// snapshot the engine clones. An inline step list wins over the stored
// template, so older callers that ship the whole template keep working.
func resolveTemplate(ctx context.Context, e engine.Engine, ref WorkflowTemplateRef) (domain.WorkflowTemplate, error) {
	id := ref.ID
	if id == "" {
		id = ref.LegacyID
	}
	if id == "" {
		return domain.WorkflowTemplate{}, engine.ValidationError{Message: "workflowTemplate id is required"}
	}
	if len(ref.Steps) == 0 {
		return e.GetTemplate(ctx, id)
	}
	wf := domain.WorkflowTemplate{ID: id, AllottedTimeDays: ref.AllottedTimeDays}
	for i, s := range ref.Steps {
		wf.Steps = append(wf.Steps, domain.Step{
			StepOrder:        i + 1,
			Title:            s.Title,
			AssignedRole:     s.AssignedRole,
			StepDurationDays: s.StepDurationDays,
		})
	}
	return wf, nil
}

func registerOnboarding(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "assign-workflow",
		Method:        http.MethodPost,
		Path:          "/assign",
		Summary:       "Assign a workflow to an employee",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body AssignRequest `json:"body"`
	}) (*struct {
		Body domain.OnboardingInstance `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin)
		if authErr != nil {
			return nil, authErr
		}
		wf, err := resolveTemplate(ctx, e, input.Body.WorkflowTemplate)
		if err != nil {
			return nil, handleError(err)
		}
		assignedBy := input.Body.AssignedBy
		if assignedBy == "" {
			assignedBy = principal.UserID
		}
		inst, err := e.AssignWorkflow(ctx, engine.AssignOptions{
			EmployeeID: input.Body.EmployeeID,
			Template:   wf,
			AssignedBy: assignedBy,
			ManagerID:  input.Body.ManagerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingInstance `json:"body"`
		}{Body: inst}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-employee-onboardings",
		Method:      http.MethodGet,
		Path:        "/employee/{employeeId}",
		Summary:     "List an employee's onboardings",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EmployeeID string `path:"employeeId"`
	}) (*struct {
		Body []engine.DecoratedInstance `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee)
		if authErr != nil {
			return nil, authErr
		}
		if principal.Role == domain.RoleEmployee && principal.UserID != input.EmployeeID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "employees may only view their own onboardings", nil)
		}
		items, err := e.ListEmployeeInstances(ctx, input.EmployeeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.DecoratedInstance `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-manager-employees",
		Method:      http.MethodGet,
		Path:        "/manager/employees",
		Summary:     "List a manager's employee onboardings",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ManagerID string `query:"managerId"`
	}) (*struct {
		Body []engine.ManagerInstance `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		managerID := input.ManagerID
		if managerID == "" {
			managerID = principal.UserID
		}
		if principal.Role == domain.RoleManager && managerID != principal.UserID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "managers may only view their own employees", nil)
		}
		items, err := e.ListManagerInstances(ctx, managerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.ManagerInstance `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-manager-tasks",
		Method:      http.MethodGet,
		Path:        "/manager-tasks",
		Summary:     "List a manager's pending tasks",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ManagerID string `query:"managerId"`
	}) (*struct {
		Body []engine.ManagerTask `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		managerID := input.ManagerID
		if managerID == "" {
			managerID = principal.UserID
		}
		if principal.Role == domain.RoleManager && managerID != principal.UserID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "managers may only view their own tasks", nil)
		}
		items, err := e.ListManagerTasks(ctx, managerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.ManagerTask `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-all-onboardings",
		Method:      http.MethodGet,
		Path:        "/admin/all",
		Summary:     "List every onboarding with resolved names",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.AdminInstance `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAllInstances(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.AdminInstance `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-project-status",
		Method:      http.MethodPut,
		Path:        "/{id}/project-status",
		Summary:     "Set the employee-facing project status",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body ProjectStatusRequest `json:"body"`
	}) (*struct {
		Body domain.OnboardingInstance `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleEmployee)
		if authErr != nil {
			return nil, authErr
		}
		employeeID := input.Body.EmployeeID
		if employeeID == "" {
			employeeID = principal.UserID
		}
		inst, err := e.SetProjectStatus(ctx, input.ID, employeeID, input.Body.ProjectStatus)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingInstance `json:"body"`
		}{Body: inst}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-update",
		Method:      http.MethodPost,
		Path:        "/update",
		Summary:     "Post an employee progress update",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body PostUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.OnboardingInstance `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleEmployee)
		if authErr != nil {
			return nil, authErr
		}
		employeeID := input.Body.EmployeeID
		if employeeID == "" {
			employeeID = principal.UserID
		}
		inst, err := e.PostUpdate(ctx, input.Body.OnboardingID, employeeID, input.Body.Note)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingInstance `json:"body"`
		}{Body: inst}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-task",
		Method:      http.MethodPost,
		Path:        "/manager-review",
		Summary:     "Approve or reject a task",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body ManagerReviewRequest `json:"body"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee)
		if authErr != nil {
			return nil, authErr
		}
		_, err := e.ReviewTask(ctx, engine.TaskReviewOptions{
			InstanceID:   input.Body.OnboardingID,
			StepOrder:    input.Body.StepOrder,
			Action:       input.Body.Action,
			Comment:      input.Body.Comment,
			ReviewerID:   principal.UserID,
			ReviewerRole: principal.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Task " + input.Body.Action + "d successfully."}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-completion",
		Method:      http.MethodPost,
		Path:        "/{id}/review-completion",
		Summary:     "Accept or reject a declared completion",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body CompletionReviewRequest `json:"body"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager)
		if authErr != nil {
			return nil, authErr
		}
		reviewerID := input.Body.ReviewerID
		if reviewerID == "" {
			reviewerID = principal.UserID
		}
		reviewerRole := input.Body.ReviewerRole
		if reviewerRole == "" {
			reviewerRole = principal.Role
		}
		_, err := e.ReviewCompletion(ctx, engine.CompletionReviewOptions{
			InstanceID:   input.ID,
			ReviewerID:   reviewerID,
			ReviewerRole: reviewerRole,
			Action:       input.Body.Action,
			Remark:       input.Body.Remark,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Completion review recorded."}}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications/{userId}",
		Summary:     "List a user's notifications",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"userId"`
	}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee)
		if authErr != nil {
			return nil, authErr
		}
		if principal.Role != domain.RoleAdmin && principal.UserID != input.UserID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "users may only read their own notifications", nil)
		}
		items, err := e.Repo.ListNotifications(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPut,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark a notification read",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee); authErr != nil {
			return nil, authErr
		}
		if err := e.MarkNotificationRead(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "Notification marked as read."}}, nil
	})
}

// uploadHandler accepts the multipart document upload. It sits on the chi
// router directly because the field list is dynamic; auth still applies via
// the shared middleware.
func uploadHandler(cfg OnboardingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalFromContext(r.Context())
		if !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
			return
		}
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "malformed multipart body", nil))
			return
		}
		instanceID := chi.URLParam(r, "id")
		employeeID := r.FormValue("employeeId")
		if employeeID == "" {
			employeeID = principal.UserID
		}
		parts := r.MultipartForm.File["documents"]
		if len(parts) == 0 {
			respondStatusError(w, handleError(engine.ValidationError{Message: "no documents uploaded"}))
			return
		}
		if cfg.MaxFiles > 0 && len(parts) > cfg.MaxFiles {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request",
				"too many files in one upload", map[string]any{"max": cfg.MaxFiles}))
			return
		}
		var docs []domain.Document
		// Saved files without a metadata row are orphans; sweep them on any
		// later failure.
		discard := func() {
			for _, d := range docs {
				if err := cfg.Store.Remove(d.FileName); err != nil {
					cfg.Log.Warn().Err(err).Str("file", d.FileName).Msg("orphaned upload not removed")
				}
			}
		}
		for _, part := range parts {
			f, err := part.Open()
			if err != nil {
				discard()
				respondStatusError(w, handleError(err))
				return
			}
			doc, err := cfg.Store.Save(part.Filename, part.Header.Get("Content-Type"), f)
			f.Close()
			if err != nil {
				discard()
				respondStatusError(w, handleError(err))
				return
			}
			docs = append(docs, doc)
		}
		inst, err := cfg.Engine.AttachDocuments(r.Context(), instanceID, employeeID, docs)
		if err != nil {
			discard()
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(inst)
	}
}

func serveUpload(store files.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := store.Path(chi.URLParam(r, "key"))
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "no such file", nil))
			return
		}
		http.ServeFile(w, r, path)
	}
}
