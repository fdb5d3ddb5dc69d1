package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"onboard/internal/config"
	"onboard/internal/db"
	"onboard/internal/directory"
	"onboard/internal/engine"
	"onboard/internal/files"
	"onboard/internal/migrate"
	"onboard/internal/server"
)

type testCluster struct {
	AuthURL       string
	WorkflowURL   string
	OnboardingURL string
	UploadsDir    string
	client        *http.Client
}

func listen(t *testing.T, handler http.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
	})
	return "http://" + ln.Addr().String()
}

func newTestCluster(t *testing.T) *testCluster {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	uploadsDir, err := db.UploadsDir(workspace)
	if err != nil {
		t.Fatalf("uploads dir: %v", err)
	}

	cfg := config.Default()
	log := zerolog.Nop()
	e := engine.New(conn, cfg, log)
	d := directory.New(conn, cfg, log)
	auth := server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret}

	return &testCluster{
		UploadsDir:  uploadsDir,
		AuthURL:     listen(t, server.NewAuthService(d, auth, log)),
		WorkflowURL: listen(t, server.NewWorkflowService(e, auth, log)),
		OnboardingURL: listen(t, server.NewOnboardingService(server.OnboardingConfig{
			Engine:   e,
			Store:    files.Store{Dir: uploadsDir},
			MaxFiles: cfg.Uploads.MaxFiles,
			Auth:     auth,
			Log:      log,
		})),
		client: &http.Client{},
	}
}

func (c *testCluster) doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func (c *testCluster) register(t *testing.T, name, email, role string) string {
	t.Helper()
	res, data := c.doJSON(t, http.MethodPost, c.AuthURL+"/api/auth/register", "", map[string]any{
		"name": name, "email": email, "password": "pass1234", "role": role,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, res.StatusCode, data)
	}
	var u struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return u.ID
}

func (c *testCluster) login(t *testing.T, email string) string {
	t.Helper()
	res, data := c.doJSON(t, http.MethodPost, c.AuthURL+"/api/auth/login", "", map[string]any{
		"email": email, "password": "pass1234",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, res.StatusCode, data)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.Token == "" {
		t.Fatal("empty token")
	}
	return out.Token
}

func TestAuthFlow(t *testing.T) {
	c := newTestCluster(t)
	c.register(t, "Ada Admin", "ada@example.com", "ADMIN")

	// Duplicate email is rejected.
	res, _ := c.doJSON(t, http.MethodPost, c.AuthURL+"/api/auth/register", "", map[string]any{
		"name": "Ada Again", "email": "ada@example.com", "password": "pass1234",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate email: status %d", res.StatusCode)
	}

	// Wrong password fails without leaking which part was wrong.
	res, data := c.doJSON(t, http.MethodPost, c.AuthURL+"/api/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "nope",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad password: status %d body %s", res.StatusCode, data)
	}

	token := c.login(t, "ada@example.com")

	// Listing users needs a token.
	res, _ = c.doJSON(t, http.MethodGet, c.AuthURL+"/api/auth/users/all", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: status %d", res.StatusCode)
	}
	res, data = c.doJSON(t, http.MethodGet, c.AuthURL+"/api/auth/users/all", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list users: status %d body %s", res.StatusCode, data)
	}
	var listed struct {
		Users []struct {
			Email string `json:"email"`
		} `json:"users"`
	}
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(listed.Users) != 1 || listed.Users[0].Email != "ada@example.com" {
		t.Fatalf("users = %+v", listed.Users)
	}
}

func TestOnboardingLifecycleOverHTTP(t *testing.T) {
	c := newTestCluster(t)
	adminID := c.register(t, "Ada Admin", "ada@example.com", "ADMIN")
	managerID := c.register(t, "Max Manager", "max@example.com", "MANAGER")
	employeeID := c.register(t, "Eve Employee", "eve@example.com", "EMPLOYEE")
	c.register(t, "Other Employee", "other@example.com", "EMPLOYEE")
	_ = adminID

	adminToken := c.login(t, "ada@example.com")
	managerToken := c.login(t, "max@example.com")
	employeeToken := c.login(t, "eve@example.com")
	otherToken := c.login(t, "other@example.com")

	// Admin creates a template.
	res, data := c.doJSON(t, http.MethodPost, c.WorkflowURL+"/api/workflows", adminToken, map[string]any{
		"name": "Engineering onboarding",
		"steps": []map[string]any{
			{"title": "Set up laptop", "assignedRole": "admin"},
			{"title": "Meet the team", "assignedRole": "manager"},
		},
		"allottedTimeDays": 5,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create workflow: status %d body %s", res.StatusCode, data)
	}
	var wf struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("decode workflow: %v", err)
	}

	// Employees may not create templates.
	res, _ = c.doJSON(t, http.MethodPost, c.WorkflowURL+"/api/workflows", employeeToken, map[string]any{
		"name": "x", "steps": []map[string]any{{"title": "a", "assignedRole": "admin"}},
	})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("employee create workflow: status %d", res.StatusCode)
	}

	// Admin assigns; the snapshot comes from the stored template.
	res, data = c.doJSON(t, http.MethodPost, c.OnboardingURL+"/api/onboarding/assign", adminToken, map[string]any{
		"employeeId":       employeeID,
		"workflowTemplate": map[string]any{"id": wf.ID},
		"managerId":        managerID,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("assign: status %d body %s", res.StatusCode, data)
	}
	var inst struct {
		ID    string `json:"id"`
		Tasks []struct {
			StepOrder int `json:"stepOrder"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(data, &inst); err != nil {
		t.Fatalf("decode instance: %v", err)
	}
	if len(inst.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(inst.Tasks))
	}

	// The employee sees their own list; another employee is rejected.
	res, _ = c.doJSON(t, http.MethodGet, c.OnboardingURL+"/api/onboarding/employee/"+employeeID, employeeToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("own list: status %d", res.StatusCode)
	}
	res, _ = c.doJSON(t, http.MethodGet, c.OnboardingURL+"/api/onboarding/employee/"+employeeID, otherToken, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign list: status %d", res.StatusCode)
	}

	// Completed without documents is a 400.
	res, _ = c.doJSON(t, http.MethodPut, c.OnboardingURL+"/api/onboarding/"+inst.ID+"/project-status", employeeToken, map[string]any{
		"projectStatus": "completed",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("completed without docs: status %d", res.StatusCode)
	}

	// Upload one document, then complete.
	res, data = c.upload(t, inst.ID, employeeToken, map[string]string{"report.pdf": "quarterly summary"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", res.StatusCode, data)
	}
	var uploaded struct {
		Documents []struct {
			URL string `json:"url"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(data, &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if len(uploaded.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(uploaded.Documents))
	}

	// The stored file serves back under /uploads.
	res, data = c.doJSON(t, http.MethodGet, c.OnboardingURL+uploaded.Documents[0].URL, "", nil)
	if res.StatusCode != http.StatusOK || string(data) != "quarterly summary" {
		t.Fatalf("serve upload: status %d body %q", res.StatusCode, data)
	}

	res, _ = c.doJSON(t, http.MethodPut, c.OnboardingURL+"/api/onboarding/"+inst.ID+"/project-status", employeeToken, map[string]any{
		"projectStatus": "completed",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("completed with docs: status %d", res.StatusCode)
	}

	// Manager reviews their step; reviewing the admin step is forbidden.
	res, _ = c.doJSON(t, http.MethodPost, c.OnboardingURL+"/api/onboarding/manager-review", managerToken, map[string]any{
		"onboardingId": inst.ID, "stepOrder": 1, "action": "approve",
	})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong-role review: status %d", res.StatusCode)
	}
	res, data = c.doJSON(t, http.MethodPost, c.OnboardingURL+"/api/onboarding/manager-review", managerToken, map[string]any{
		"onboardingId": inst.ID, "stepOrder": 2, "action": "approve",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("manager review: status %d body %s", res.StatusCode, data)
	}

	// Manager accepts the declared completion.
	res, data = c.doJSON(t, http.MethodPost, c.OnboardingURL+"/api/onboarding/"+inst.ID+"/review-completion", managerToken, map[string]any{
		"action": "accept", "remark": "solid work",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("completion review: status %d body %s", res.StatusCode, data)
	}

	// The employee has notifications and can mark one read.
	res, data = c.doJSON(t, http.MethodGet, c.OnboardingURL+"/api/onboarding/notifications/"+employeeID, employeeToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("notifications: status %d", res.StatusCode)
	}
	var notes []struct {
		ID     string `json:"id"`
		IsRead bool   `json:"isRead"`
	}
	if err := json.Unmarshal(data, &notes); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notes) == 0 {
		t.Fatal("expected notifications for the employee")
	}
	res, _ = c.doJSON(t, http.MethodPut, c.OnboardingURL+"/api/onboarding/notifications/"+notes[0].ID+"/read", employeeToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark read: status %d", res.StatusCode)
	}

	// Other employees may not read someone else's notifications.
	res, _ = c.doJSON(t, http.MethodGet, c.OnboardingURL+"/api/onboarding/notifications/"+employeeID, otherToken, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign notifications: status %d", res.StatusCode)
	}

	// Admin view resolves nothing remotely here but still returns rows.
	res, _ = c.doJSON(t, http.MethodGet, c.OnboardingURL+"/api/onboarding/admin/all", adminToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin/all: status %d", res.StatusCode)
	}
}

func (c *testCluster) upload(t *testing.T, instanceID, token string, docs map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range docs {
		part, err := mw.CreateFormFile("documents", name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		fmt.Fprint(part, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.OnboardingURL+"/api/onboarding/"+instanceID+"/documents", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do upload: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthIsOpen(t *testing.T) {
	c := newTestCluster(t)
	res, data := c.doJSON(t, http.MethodGet, c.OnboardingURL+"/api/onboarding/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d body %s", res.StatusCode, data)
	}
}

func TestRejectedUploadLeavesNoFiles(t *testing.T) {
	c := newTestCluster(t)
	adminID := c.register(t, "Ada Admin", "ada@example.com", "ADMIN")
	employeeID := c.register(t, "Eve Employee", "eve@example.com", "EMPLOYEE")
	c.register(t, "Other Employee", "other@example.com", "EMPLOYEE")
	_ = adminID

	adminToken := c.login(t, "ada@example.com")
	otherToken := c.login(t, "other@example.com")

	res, data := c.doJSON(t, http.MethodPost, c.OnboardingURL+"/api/onboarding/assign", adminToken, map[string]any{
		"employeeId": employeeID,
		"workflowTemplate": map[string]any{
			"id":    "wf-inline",
			"steps": []map[string]any{{"title": "Set up laptop", "assignedRole": "admin"}},
		},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("assign: status %d body %s", res.StatusCode, data)
	}
	var inst struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &inst); err != nil {
		t.Fatalf("decode instance: %v", err)
	}

	// A stranger's upload is forbidden and must not leave files behind.
	res, _ = c.upload(t, inst.ID, otherToken, map[string]string{"sneaky.pdf": "not mine"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign upload: status %d", res.StatusCode)
	}
	entries, err := os.ReadDir(c.UploadsDir)
	if err != nil {
		t.Fatalf("read uploads dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("uploads dir has %d orphaned file(s)", len(entries))
	}
}

func TestDocsWorkWithoutToken(t *testing.T) {
	c := newTestCluster(t)
	res, data := c.doJSON(t, http.MethodGet, c.AuthURL+"/docs", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("docs: status %d body %s", res.StatusCode, data)
	}
	// The docs page fetches the OpenAPI document; it has to be open too.
	res, data = c.doJSON(t, http.MethodGet, c.AuthURL+"/api/auth/openapi.json", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi.json: status %d body %s", res.StatusCode, data)
	}
	var oas struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &oas); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	if len(oas.Paths) == 0 {
		t.Fatal("openapi document lists no paths")
	}
}
