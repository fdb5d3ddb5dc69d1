// Package onboardsdk is a minimal typed client for the Onboard HTTP APIs.
package onboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to the three Onboard services. Base URLs may point at the
// same host or at split deployments.
type Client struct {
	AuthURL       string
	WorkflowURL   string
	OnboardingURL string
	BearerToken   string
	HTTPClient    *http.Client
	Timeout       time.Duration
}

// New creates a client with sane defaults against one host.
func New(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		AuthURL:       base,
		WorkflowURL:   base,
		OnboardingURL: base,
		Timeout:       10 * time.Second,
	}
}

// User is the directory's user model.
type User struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	ManagerID     *string `json:"managerId,omitempty"`
	DateOfJoining string  `json:"dateOfJoining"`
}

// Step is one template checklist item.
type Step struct {
	StepOrder        int    `json:"stepOrder"`
	Title            string `json:"title"`
	AssignedRole     string `json:"assignedRole"`
	StepDurationDays int    `json:"stepDurationDays,omitempty"`
}

// Workflow is a reusable onboarding checklist.
type Workflow struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	Steps            []Step `json:"steps"`
	AllottedTimeDays int    `json:"allottedTimeDays,omitempty"`
	CreatedAt        string `json:"createdAt"`
}

// Task is one reviewable item cloned from a template step.
type Task struct {
	StepOrder      int     `json:"stepOrder"`
	Title          string  `json:"title"`
	AssignedToRole string  `json:"assignedToRole"`
	Status         string  `json:"status"`
	ManagerComment string  `json:"managerComment,omitempty"`
	ReviewedAt     *string `json:"reviewedAt,omitempty"`
}

// Onboarding is one employee's run of a workflow (partial).
type Onboarding struct {
	ID                 string  `json:"id"`
	EmployeeID         string  `json:"employeeId"`
	WorkflowTemplateID string  `json:"workflowTemplateId"`
	Tasks              []Task  `json:"tasks"`
	Progress           int     `json:"progress"`
	Status             string  `json:"status"`
	ProjectStatus      string  `json:"projectStatus"`
	StartedAt          string  `json:"startedAt"`
	Deadline           *string `json:"deadline,omitempty"`
	Version            int64   `json:"version"`
}

// Notification is one per-user message.
type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]any{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, c.AuthURL, "/api/auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Register creates a user.
func (c *Client) Register(ctx context.Context, name, email, password, role string) (User, error) {
	body := map[string]any{"name": name, "email": email, "password": password, "role": role}
	var resp User
	err := c.do(ctx, http.MethodPost, c.AuthURL, "/api/auth/register", body, &resp)
	return resp, err
}

// Users lists the whole directory.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, c.AuthURL, "/api/auth/users/all", nil, &resp)
	return resp.Users, err
}

// CreateWorkflow creates a template.
func (c *Client) CreateWorkflow(ctx context.Context, name, description string, steps []Step, allottedTimeDays int) (Workflow, error) {
	body := map[string]any{
		"name":             name,
		"description":      description,
		"steps":            steps,
		"allottedTimeDays": allottedTimeDays,
	}
	var resp Workflow
	err := c.do(ctx, http.MethodPost, c.WorkflowURL, "/api/workflows", body, &resp)
	return resp, err
}

// Workflows lists every template.
func (c *Client) Workflows(ctx context.Context) ([]Workflow, error) {
	var resp struct {
		Workflows []Workflow `json:"workflows"`
	}
	err := c.do(ctx, http.MethodGet, c.WorkflowURL, "/api/workflows", nil, &resp)
	return resp.Workflows, err
}

// Assign starts an onboarding from a stored template.
func (c *Client) Assign(ctx context.Context, employeeID, workflowID, managerID string) (Onboarding, error) {
	body := map[string]any{
		"employeeId":       employeeID,
		"workflowTemplate": map[string]any{"id": workflowID},
	}
	if managerID != "" {
		body["managerId"] = managerID
	}
	var resp Onboarding
	err := c.do(ctx, http.MethodPost, c.OnboardingURL, "/api/onboarding/assign", body, &resp)
	return resp, err
}

// EmployeeOnboardings lists one employee's instances.
func (c *Client) EmployeeOnboardings(ctx context.Context, employeeID string) ([]Onboarding, error) {
	var resp []Onboarding
	endpoint := "/api/onboarding/employee/" + url.PathEscape(employeeID)
	err := c.do(ctx, http.MethodGet, c.OnboardingURL, endpoint, nil, &resp)
	return resp, err
}

// SetProjectStatus moves the coarse employee-facing status.
func (c *Client) SetProjectStatus(ctx context.Context, onboardingID, status string) (Onboarding, error) {
	body := map[string]any{"projectStatus": status}
	var resp Onboarding
	endpoint := "/api/onboarding/" + url.PathEscape(onboardingID) + "/project-status"
	err := c.do(ctx, http.MethodPut, c.OnboardingURL, endpoint, body, &resp)
	return resp, err
}

// PostUpdate appends a progress note.
func (c *Client) PostUpdate(ctx context.Context, onboardingID, note string) (Onboarding, error) {
	body := map[string]any{"onboardingId": onboardingID, "note": note}
	var resp Onboarding
	err := c.do(ctx, http.MethodPost, c.OnboardingURL, "/api/onboarding/update", body, &resp)
	return resp, err
}

// ReviewTask approves or rejects one task.
func (c *Client) ReviewTask(ctx context.Context, onboardingID string, stepOrder int, action, comment string) error {
	body := map[string]any{
		"onboardingId": onboardingID,
		"stepOrder":    stepOrder,
		"action":       action,
		"comment":      comment,
	}
	return c.do(ctx, http.MethodPost, c.OnboardingURL, "/api/onboarding/manager-review", body, nil)
}

// ReviewCompletion accepts or rejects a declared completion.
func (c *Client) ReviewCompletion(ctx context.Context, onboardingID, action, remark string) error {
	body := map[string]any{"action": action, "remark": remark}
	endpoint := "/api/onboarding/" + url.PathEscape(onboardingID) + "/review-completion"
	return c.do(ctx, http.MethodPost, c.OnboardingURL, endpoint, body, nil)
}

// UploadDocuments sends local files as the multipart documents field.
func (c *Client) UploadDocuments(ctx context.Context, onboardingID string, paths []string) (Onboarding, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return Onboarding{}, err
		}
		part, err := mw.CreateFormFile("documents", filepath.Base(p))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return Onboarding{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Onboarding{}, err
	}
	endpoint := "/api/onboarding/" + url.PathEscape(onboardingID) + "/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.OnboardingURL, "/")+endpoint, &buf)
	if err != nil {
		return Onboarding{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Onboarding{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Onboarding{}, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	var inst Onboarding
	err = json.NewDecoder(resp.Body).Decode(&inst)
	return inst, err
}

// Notifications lists a user's notifications.
func (c *Client) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	var resp []Notification
	endpoint := "/api/onboarding/notifications/" + url.PathEscape(userID)
	err := c.do(ctx, http.MethodGet, c.OnboardingURL, endpoint, nil, &resp)
	return resp, err
}

// MarkNotificationRead flips the read flag.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	endpoint := "/api/onboarding/notifications/" + url.PathEscape(id) + "/read"
	return c.do(ctx, http.MethodPut, c.OnboardingURL, endpoint, nil, nil)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) do(ctx context.Context, method, base, endpoint string, body, out any) error {
	target := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
