package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"onboard/internal/directory"
	"onboard/internal/domain"
)

// NewAuthService exposes registration, login and the user directory under
// /api/auth.
func NewAuthService(d directory.Directory, auth AuthConfig, log zerolog.Logger) http.Handler {
	router, _, group := newService("Onboard Auth API", "/api/auth", auth, log)
	registerUsers(group, d)
	return router
}

func registerUsers(api huma.API, d directory.Directory) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/register",
		Summary:       "Register a user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := d.Register(ctx, directory.RegisterOptions{
			Name:      input.Body.Name,
			Email:     input.Body.Email,
			Password:  input.Body.Password,
			Role:      input.Body.Role,
			ManagerID: input.Body.ManagerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Log in",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		u, token, err := d.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, User: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users/all",
		Summary:     "List all users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UsersResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); authErr != nil {
			return nil, authErr
		}
		users, err := d.ListUsers(ctx, "")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UsersResponse `json:"body"`
		}{Body: UsersResponse{Users: mapUsers(users)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users-by-role",
		Method:      http.MethodGet,
		Path:        "/users/role/{role}",
		Summary:     "List users holding a role",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `path:"role"`
	}) (*struct {
		Body UsersResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); authErr != nil {
			return nil, authErr
		}
		users, err := d.ListUsers(ctx, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UsersResponse `json:"body"`
		}{Body: UsersResponse{Users: mapUsers(users)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/users/{id}",
		Summary:     "Update a user's name or manager",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, domain.RoleAdmin); authErr != nil {
			return nil, authErr
		}
		opts := directory.UpdateUserOptions{Name: input.Body.Name}
		if input.Body.ManagerID != nil {
			opts.ManagerID = input.Body.ManagerID
			opts.ManagerSet = true
		} else if input.Body.ClearManager {
			opts.ManagerSet = true
		}
		u, err := d.UpdateUser(ctx, input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}
