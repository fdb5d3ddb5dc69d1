package engine

import (
	"context"
	"math"
	"time"

	"onboard/internal/domain"
	"onboard/internal/lookup"
	"onboard/internal/repo"
)

// DecoratedInstance is an instance enriched with derived day counts for the
// employee and manager dashboards.
type DecoratedInstance struct {
	domain.OnboardingInstance
	DaysGiven *int `json:"daysGiven"`
	DaysLeft  *int `json:"daysLeft"`
}

// ManagerInstance is the compact row shown on the manager's employee list.
type ManagerInstance struct {
	OnboardingID       string `json:"onboardingId"`
	EmployeeID         string `json:"employeeId"`
	WorkflowTemplateID string `json:"workflowTemplateId"`
	ProjectStatus      string `json:"projectStatus"`
	Status             string `json:"status"`
	StartedAt          string `json:"startedAt"`
	DaysGiven          *int   `json:"daysGiven"`
	DaysLeft           *int   `json:"daysLeft"`
}

// ManagerTask is one pending manager-role task flattened out of an instance.
type ManagerTask struct {
	OnboardingID string `json:"onboardingId"`
	EmployeeID   string `json:"employeeId"`
	Title        string `json:"title"`
	StepOrder    int    `json:"stepOrder"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
}

// AdminInstance is the fully decorated admin view with resolved references.
type AdminInstance struct {
	domain.OnboardingInstance
	Employee          lookup.UserRef     `json:"employee"`
	Manager           *lookup.UserRef    `json:"manager,omitempty"`
	Workflow          lookup.WorkflowRef `json:"workflow"`
	DaysGiven         *int               `json:"daysGiven"`
	DaysLeft          *int               `json:"daysLeft"`
	TimeRemainingDays *int               `json:"timeRemainingDays"`
}

// ceilDays counts whole 24h periods in d, rounding any remainder up. This is
// how the dashboard has always shown durations, so 4 days 1 hour reads as 5.
func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

func (e Engine) dayCounts(inst domain.OnboardingInstance) (given, left *int) {
	if inst.Deadline == nil {
		return nil, nil
	}
	deadline, err := time.Parse(time.RFC3339, *inst.Deadline)
	if err != nil {
		return nil, nil
	}
	started, err := time.Parse(time.RFC3339, inst.StartedAt)
	if err != nil {
		return nil, nil
	}
	g := ceilDays(deadline.Sub(started))
	l := ceilDays(deadline.Sub(e.now().UTC()))
	return &g, &l
}

// ListEmployeeInstances returns the instances owned by one employee,
// newest first, with day counts.
func (e Engine) ListEmployeeInstances(ctx context.Context, employeeID string) ([]DecoratedInstance, error) {
	instances, err := e.Repo.ListInstances(ctx, repo.InstanceFilters{EmployeeID: employeeID})
	if err != nil {
		return nil, err
	}
	out := make([]DecoratedInstance, 0, len(instances))
	for _, inst := range instances {
		given, left := e.dayCounts(inst)
		out = append(out, DecoratedInstance{OnboardingInstance: inst, DaysGiven: given, DaysLeft: left})
	}
	return out, nil
}

// ListManagerInstances returns the compact per-employee rows for one manager.
func (e Engine) ListManagerInstances(ctx context.Context, managerID string) ([]ManagerInstance, error) {
	instances, err := e.Repo.ListInstances(ctx, repo.InstanceFilters{ManagerID: managerID})
	if err != nil {
		return nil, err
	}
	out := make([]ManagerInstance, 0, len(instances))
	for _, inst := range instances {
		given, left := e.dayCounts(inst)
		out = append(out, ManagerInstance{
			OnboardingID:       inst.ID,
			EmployeeID:         inst.EmployeeID,
			WorkflowTemplateID: inst.WorkflowTemplateID,
			ProjectStatus:      inst.ProjectStatus,
			Status:             inst.Status,
			StartedAt:          inst.StartedAt,
			DaysGiven:          given,
			DaysLeft:           left,
		})
	}
	return out, nil
}

// ListManagerTasks flattens the pending manager-role tasks across one
// manager's instances.
func (e Engine) ListManagerTasks(ctx context.Context, managerID string) ([]ManagerTask, error) {
	instances, err := e.Repo.ListInstances(ctx, repo.InstanceFilters{ManagerID: managerID})
	if err != nil {
		return nil, err
	}
	out := []ManagerTask{}
	for _, inst := range instances {
		for _, t := range inst.Tasks {
			if t.AssignedToRole != domain.StepRoleManager || t.Status != domain.ReviewPending {
				continue
			}
			out = append(out, ManagerTask{
				OnboardingID: inst.ID,
				EmployeeID:   inst.EmployeeID,
				Title:        t.Title,
				StepOrder:    t.StepOrder,
				Status:       t.Status,
				Progress:     inst.Progress,
			})
		}
	}
	return out, nil
}

// ListAllInstances is the admin view: every instance with employee, manager
// and workflow references resolved, falling back to placeholders for ids the
// resolver cannot find.
func (e Engine) ListAllInstances(ctx context.Context) ([]AdminInstance, error) {
	instances, err := e.Repo.ListInstances(ctx, repo.InstanceFilters{})
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(instances)*2)
	workflowIDs := make([]string, 0, len(instances))
	for _, inst := range instances {
		userIDs = append(userIDs, inst.EmployeeID)
		if inst.ManagerID != nil {
			userIDs = append(userIDs, *inst.ManagerID)
		}
		workflowIDs = append(workflowIDs, inst.WorkflowTemplateID)
	}
	users := e.Resolve.Users(ctx, userIDs)
	workflows := e.Resolve.Workflows(ctx, workflowIDs)

	out := make([]AdminInstance, 0, len(instances))
	for _, inst := range instances {
		row := AdminInstance{OnboardingInstance: inst}
		if ref, ok := users[inst.EmployeeID]; ok {
			row.Employee = ref
		} else {
			row.Employee = lookup.EmployeeFallback(inst.EmployeeID)
		}
		if inst.ManagerID != nil {
			ref, ok := users[*inst.ManagerID]
			if !ok {
				ref = lookup.ManagerFallback(*inst.ManagerID)
			}
			row.Manager = &ref
		}
		if ref, ok := workflows[inst.WorkflowTemplateID]; ok {
			row.Workflow = ref
		} else {
			row.Workflow = lookup.WorkflowFallback(inst.WorkflowTemplateID)
		}
		row.DaysGiven, row.DaysLeft = e.dayCounts(inst)
		row.TimeRemainingDays = row.DaysLeft
		out = append(out, row)
	}
	return out, nil
}
