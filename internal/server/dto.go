package server

import (
	"onboard/internal/domain"
)

// Request payloads

type RegisterRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email" format:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty" enum:"ADMIN,MANAGER,EMPLOYEE"`
	ManagerID string `json:"managerId,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Name         *string `json:"name,omitempty"`
	ManagerID    *string `json:"managerId,omitempty"`
	ClearManager bool    `json:"clearManager,omitempty"`
}

type StepRequest struct {
	Title            string `json:"title"`
	AssignedRole     string `json:"assignedRole" enum:"admin,manager,employee"`
	StepDurationDays int    `json:"stepDurationDays,omitempty" minimum:"0"`
}

type CreateWorkflowRequest struct {
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	Steps            []StepRequest `json:"steps"`
	AllottedTimeDays int           `json:"allottedTimeDays,omitempty" minimum:"0"`
}

// WorkflowTemplateRef names the template to assign. id is canonical; _id is
// accepted for callers still sending the legacy shape. Steps and
// allottedTimeDays override the stored template when present, otherwise the
// template is loaded and cloned as stored.
type WorkflowTemplateRef struct {
	ID               string        `json:"id,omitempty"`
	LegacyID         string        `json:"_id,omitempty"`
	Steps            []StepRequest `json:"steps,omitempty"`
	AllottedTimeDays int           `json:"allottedTimeDays,omitempty" minimum:"0"`
}

type AssignRequest struct {
	EmployeeID       string              `json:"employeeId"`
	WorkflowTemplate WorkflowTemplateRef `json:"workflowTemplate"`
	AssignedBy       string              `json:"assignedBy,omitempty"`
	ManagerID        string              `json:"managerId,omitempty"`
}

type ProjectStatusRequest struct {
	EmployeeID    string `json:"employeeId,omitempty"`
	ProjectStatus string `json:"projectStatus" enum:"started,pending,ongoing,completed"`
}

type PostUpdateRequest struct {
	OnboardingID string `json:"onboardingId"`
	EmployeeID   string `json:"employeeId,omitempty"`
	Note         string `json:"note"`
}

type ManagerReviewRequest struct {
	OnboardingID string `json:"onboardingId"`
	StepOrder    int    `json:"stepOrder"`
	Action       string `json:"action" enum:"approve,reject"`
	Comment      string `json:"comment,omitempty"`
}

type CompletionReviewRequest struct {
	ReviewerID   string `json:"reviewerId,omitempty"`
	ReviewerRole string `json:"reviewerRole,omitempty" enum:"ADMIN,MANAGER"`
	Action       string `json:"action" enum:"accept,reject"`
	Remark       string `json:"remark,omitempty"`
}

// Response payloads

type UserResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	ManagerID     *string `json:"managerId,omitempty"`
	DateOfJoining string  `json:"dateOfJoining"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		ManagerID:     u.ManagerID,
		DateOfJoining: u.DateOfJoining,
	}
}

func mapUsers(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UsersResponse struct {
	Users []UserResponse `json:"users"`
}

type WorkflowsResponse struct {
	Workflows []domain.WorkflowTemplate `json:"workflows"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
