package engine_test

import (
	"testing"
	"time"

	"onboard/internal/domain"
	"onboard/internal/engine"
)

func TestDayCountsRoundUp(t *testing.T) {
	env := newTestEnv(t)
	tpl := testTemplate()
	tpl.AllottedTimeDays = 5
	if _, err := env.Engine.AssignWorkflow(env.Ctx, engine.AssignOptions{
		EmployeeID: "emp-1",
		Template:   tpl,
		AssignedBy: "admin-1",
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Two days and one hour in: 2d23h remain, which reads as 3 days left.
	env.Engine.Now = func() time.Time { return time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC) }
	items, err := env.Engine.ListEmployeeInstances(env.Ctx, "emp-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one instance, got %d", len(items))
	}
	if items[0].DaysGiven == nil || *items[0].DaysGiven != 5 {
		t.Fatalf("daysGiven = %v, want 5", items[0].DaysGiven)
	}
	if items[0].DaysLeft == nil || *items[0].DaysLeft != 3 {
		t.Fatalf("daysLeft = %v, want 3", items[0].DaysLeft)
	}

	// Past the deadline the count goes negative rather than clamping.
	env.Engine.Now = func() time.Time { return time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC) }
	items, err = env.Engine.ListEmployeeInstances(env.Ctx, "emp-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].DaysLeft == nil || *items[0].DaysLeft != -2 {
		t.Fatalf("daysLeft = %v, want -2", items[0].DaysLeft)
	}
}

func TestManagerViews(t *testing.T) {
	env := newTestEnv(t)
	inst := assign(t, env)

	rows, err := env.Engine.ListManagerInstances(env.Ctx, "mgr-1")
	if err != nil {
		t.Fatalf("manager instances: %v", err)
	}
	if len(rows) != 1 || rows[0].OnboardingID != inst.ID || rows[0].EmployeeID != "emp-1" {
		t.Fatalf("manager rows = %+v", rows)
	}

	tasks, err := env.Engine.ListManagerTasks(env.Ctx, "mgr-1")
	if err != nil {
		t.Fatalf("manager tasks: %v", err)
	}
	// Only the manager-role step is pending manager work.
	if len(tasks) != 1 || tasks[0].Title != "Meet the team" || tasks[0].StepOrder != 2 {
		t.Fatalf("manager tasks = %+v", tasks)
	}

	// An approved manager task drops out of the queue.
	if _, err := env.Engine.ReviewTask(env.Ctx, engine.TaskReviewOptions{
		InstanceID:   inst.ID,
		StepOrder:    2,
		Action:       "approve",
		ReviewerID:   "mgr-1",
		ReviewerRole: "manager",
	}); err != nil {
		t.Fatalf("review: %v", err)
	}
	tasks, err = env.Engine.ListManagerTasks(env.Ctx, "mgr-1")
	if err != nil {
		t.Fatalf("manager tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty queue, got %+v", tasks)
	}

	if rows, err = env.Engine.ListManagerInstances(env.Ctx, "mgr-other"); err != nil || len(rows) != 0 {
		t.Fatalf("foreign manager sees %d rows (err %v)", len(rows), err)
	}
}

func TestAdminListFallsBackOnUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	assign(t, env)

	items, err := env.Engine.ListAllInstances(env.Ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one instance, got %d", len(items))
	}
	row := items[0]
	// Nothing in the directory or catalog resolves, so placeholders apply.
	if row.Employee.Name != "Unknown Employee" || row.Employee.Email != "N/A" {
		t.Fatalf("employee fallback = %+v", row.Employee)
	}
	if row.Manager == nil || row.Manager.Name != "Unknown Manager" {
		t.Fatalf("manager fallback = %+v", row.Manager)
	}
	if row.Workflow.Name != "Unknown Workflow" {
		t.Fatalf("workflow fallback = %+v", row.Workflow)
	}
	if row.TimeRemainingDays == nil || row.DaysLeft == nil || *row.TimeRemainingDays != *row.DaysLeft {
		t.Fatalf("timeRemainingDays should alias daysLeft: %+v", row)
	}
}

func TestAdminListResolvesStoredReferences(t *testing.T) {
	env := newTestEnv(t)

	if err := env.Engine.Repo.InsertUser(env.Ctx, domain.User{
		ID: "emp-1", Name: "Dana Fields", Email: "dana@example.com",
		PasswordHash: "x", Role: domain.RoleEmployee, DateOfJoining: "2024-01-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	wf, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateOptions{
		Name: "Engineering onboarding",
		Steps: []domain.Step{
			{Title: "Set up laptop", AssignedRole: "admin"},
		},
		AllottedTimeDays: 5,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if _, err := env.Engine.AssignWorkflow(env.Ctx, engine.AssignOptions{
		EmployeeID: "emp-1",
		Template:   wf,
		AssignedBy: "admin-1",
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	items, err := env.Engine.ListAllInstances(env.Ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if items[0].Employee.Name != "Dana Fields" {
		t.Fatalf("employee = %+v", items[0].Employee)
	}
	if items[0].Workflow.Name != "Engineering onboarding" {
		t.Fatalf("workflow = %+v", items[0].Workflow)
	}
}
