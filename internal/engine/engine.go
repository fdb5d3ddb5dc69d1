package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"onboard/internal/config"
	"onboard/internal/domain"
	"onboard/internal/lookup"
	"onboard/internal/notify"
	"onboard/internal/repo"
)

// Engine owns the onboarding-instance lifecycle: assignment, task review,
// project-status transitions, updates, documents and the completion review.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Notify  notify.Writer
	Resolve lookup.Resolver
	Config  *config.Config
	Log     zerolog.Logger
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log zerolog.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		Notify:  notify.Writer{DB: db},
		Resolve: lookup.RepoResolver{Repo: r, Log: log},
		Config:  cfg,
		Log:     log,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) maxUploadFiles() int {
	if e.Config == nil {
		return 0
	}
	return e.Config.Uploads.MaxFiles
}

// AssignOptions carries the assign-workflow request: an employee, an
// assigning admin, an optional manager and a template snapshot. The snapshot
// is cloned; later template edits never reach the instance.
type AssignOptions struct {
	EmployeeID string
	Template   domain.WorkflowTemplate
	AssignedBy string
	ManagerID  string
}

func (e Engine) AssignWorkflow(ctx context.Context, opts AssignOptions) (domain.OnboardingInstance, error) {
	if opts.EmployeeID == "" || opts.Template.ID == "" || opts.AssignedBy == "" {
		return domain.OnboardingInstance{}, validationf("employeeId, workflowTemplate and assignedBy are required")
	}
	tasks := make([]domain.Task, 0, len(opts.Template.Steps))
	for _, step := range opts.Template.Steps {
		tasks = append(tasks, domain.Task{
			StepOrder:      step.StepOrder,
			Title:          step.Title,
			AssignedToRole: step.AssignedRole,
			Status:         domain.ReviewPending,
		})
	}
	startedAt := e.now().UTC()
	inst := domain.OnboardingInstance{
		ID:                 uuid.New().String(),
		EmployeeID:         opts.EmployeeID,
		WorkflowTemplateID: opts.Template.ID,
		AssignedBy:         opts.AssignedBy,
		Tasks:              tasks,
		Progress:           0,
		Status:             domain.StatusActive,
		ProjectStatus:      domain.ProjectPending,
		StartedAt:          startedAt.Format(time.RFC3339),
		Updates:            []domain.Update{},
		Documents:          []domain.Document{},
		Version:            1,
	}
	if opts.ManagerID != "" {
		inst.ManagerID = &opts.ManagerID
	}
	if opts.Template.AllottedTimeDays > 0 {
		deadline := startedAt.Add(time.Duration(opts.Template.AllottedTimeDays) * 24 * time.Hour).Format(time.RFC3339)
		inst.Deadline = &deadline
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.OnboardingInstance{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertInstance(ctx, tx, inst); err != nil {
		return domain.OnboardingInstance{}, fmt.Errorf("insert instance: %w", err)
	}
	if err := e.Notify.Append(ctx, tx, inst.EmployeeID, "A new onboarding workflow has been assigned to you."); err != nil {
		return domain.OnboardingInstance{}, err
	}
	if inst.ManagerID != nil {
		if err := e.Notify.Append(ctx, tx, *inst.ManagerID, "A new employee onboarding has been assigned to you."); err != nil {
			return domain.OnboardingInstance{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.OnboardingInstance{}, err
	}
	e.Log.Info().Str("instance", inst.ID).Str("employee", inst.EmployeeID).Msg("workflow assigned")
	return inst, nil
}

// TaskReviewOptions identifies a task by (instance, stepOrder) and carries
// the reviewer's verdict.
type TaskReviewOptions struct {
	InstanceID   string
	StepOrder    int
	Action       string
	Comment      string
	ReviewerID   string
	ReviewerRole string
}

func (e Engine) ReviewTask(ctx context.Context, opts TaskReviewOptions) (domain.OnboardingInstance, error) {
	if opts.Action != "approve" && opts.Action != "reject" {
		return domain.OnboardingInstance{}, validationf("action must be approve or reject")
	}
	inst, err := e.Repo.GetInstance(ctx, opts.InstanceID)
	if err != nil {
		return inst, err
	}
	idx := -1
	for i, t := range inst.Tasks {
		if t.StepOrder == opts.StepOrder {
			idx = i
			break
		}
	}
	if idx < 0 {
		return inst, fmt.Errorf("task with stepOrder %d: %w", opts.StepOrder, repo.ErrNotFound)
	}
	task := inst.Tasks[idx]
	if role := normalizeStepRole(opts.ReviewerRole); role != task.AssignedToRole {
		return inst, forbiddenf(fmt.Sprintf("task %q must be reviewed by role %s", task.Title, task.AssignedToRole))
	}
	if task.Status != domain.ReviewPending {
		return inst, validationf(fmt.Sprintf("task %q already reviewed", task.Title))
	}

	reviewedAt := e.timestamp()
	task.ManagerComment = opts.Comment
	task.ReviewedAt = &reviewedAt
	if opts.Action == "approve" {
		task.Status = domain.ReviewApproved
	} else {
		task.Status = domain.ReviewRejected
	}
	inst.Tasks[idx] = task
	inst.Progress = computeProgress(inst.Tasks)
	if inst.Progress == 100 {
		inst.Status = domain.StatusCompleted
		completedAt := reviewedAt
		inst.CompletedAt = &completedAt
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inst, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTask(ctx, tx, inst.ID, task); err != nil {
		return inst, err
	}
	if err := e.Repo.UpdateInstanceCAS(ctx, tx, inst); err != nil {
		return inst, err
	}
	if err := e.Notify.Append(ctx, tx, inst.EmployeeID,
		fmt.Sprintf("Your task %q was %s.", task.Title, task.Status)); err != nil {
		return inst, err
	}
	if err := tx.Commit(); err != nil {
		return inst, err
	}
	inst.Version++
	return inst, nil
}

// computeProgress is the percentage of approved tasks, rounded to the
// nearest integer. An empty task list stays at 0.
func computeProgress(tasks []domain.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	approved := 0
	for _, t := range tasks {
		if t.Status == domain.ReviewApproved {
			approved++
		}
	}
	return int(math.Round(float64(approved) * 100 / float64(len(tasks))))
}

func normalizeStepRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func (e Engine) ownedInstance(ctx context.Context, instanceID, employeeID string) (domain.OnboardingInstance, error) {
	inst, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return inst, err
	}
	if inst.EmployeeID != employeeID {
		return inst, forbiddenf("onboarding belongs to a different employee")
	}
	return inst, nil
}

// SetProjectStatus applies the employee-controlled coarse status. Moving to
// "completed" requires at least one uploaded document and arms the
// completion review.
func (e Engine) SetProjectStatus(ctx context.Context, instanceID, employeeID, projectStatus string) (domain.OnboardingInstance, error) {
	switch projectStatus {
	case domain.ProjectStarted, domain.ProjectPending, domain.ProjectOngoing, domain.ProjectCompleted:
	default:
		return domain.OnboardingInstance{}, validationf("invalid projectStatus")
	}
	inst, err := e.ownedInstance(ctx, instanceID, employeeID)
	if err != nil {
		return inst, err
	}
	if projectStatus == domain.ProjectCompleted && len(inst.Documents) == 0 {
		return inst, validationf("upload documents before marking the project completed")
	}
	inst.ProjectStatus = projectStatus
	if projectStatus == domain.ProjectCompleted {
		inst.CompletionReview = &domain.CompletionReview{Status: domain.ReviewPending}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inst, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateInstanceCAS(ctx, tx, inst); err != nil {
		return inst, err
	}
	if projectStatus == domain.ProjectCompleted {
		msg := "Employee marked their project completed; completion review required."
		if err := e.Notify.Append(ctx, tx, inst.AssignedBy, msg); err != nil {
			return inst, err
		}
		if inst.ManagerID != nil {
			if err := e.Notify.Append(ctx, tx, *inst.ManagerID, msg); err != nil {
				return inst, err
			}
		}
	} else if inst.ManagerID != nil {
		if err := e.Notify.Append(ctx, tx, *inst.ManagerID,
			fmt.Sprintf("Employee updated project status to %q.", projectStatus)); err != nil {
			return inst, err
		}
	}
	if err := tx.Commit(); err != nil {
		return inst, err
	}
	inst.Version++
	return inst, nil
}

// PostUpdate appends an employee note to the instance's update log.
func (e Engine) PostUpdate(ctx context.Context, instanceID, employeeID, note string) (domain.OnboardingInstance, error) {
	if strings.TrimSpace(note) == "" {
		return domain.OnboardingInstance{}, validationf("note is required")
	}
	inst, err := e.ownedInstance(ctx, instanceID, employeeID)
	if err != nil {
		return inst, err
	}
	update := domain.Update{
		Date:      e.timestamp(),
		Note:      note,
		CreatedBy: employeeID,
		Status:    domain.ReviewPending,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inst, err
	}
	defer tx.Rollback()

	if err := e.Repo.AppendUpdate(ctx, tx, inst.ID, update); err != nil {
		return inst, err
	}
	if err := e.Repo.UpdateInstanceCAS(ctx, tx, inst); err != nil {
		return inst, err
	}
	if inst.ManagerID != nil {
		if err := e.Notify.Append(ctx, tx, *inst.ManagerID, "Employee posted an update on their onboarding."); err != nil {
			return inst, err
		}
	}
	if err := tx.Commit(); err != nil {
		return inst, err
	}
	inst.Updates = append(inst.Updates, update)
	inst.Version++
	return inst, nil
}

// AttachDocuments records already-stored files against the instance. The
// batch size is capped by the configured uploads.maxFiles.
func (e Engine) AttachDocuments(ctx context.Context, instanceID, employeeID string, docs []domain.Document) (domain.OnboardingInstance, error) {
	if len(docs) == 0 {
		return domain.OnboardingInstance{}, validationf("no documents uploaded")
	}
	if max := e.maxUploadFiles(); max > 0 && len(docs) > max {
		return domain.OnboardingInstance{}, validationf(fmt.Sprintf("at most %d documents per upload", max))
	}
	inst, err := e.ownedInstance(ctx, instanceID, employeeID)
	if err != nil {
		return inst, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inst, err
	}
	defer tx.Rollback()

	uploadedAt := e.timestamp()
	for i := range docs {
		if docs[i].UploadedAt == "" {
			docs[i].UploadedAt = uploadedAt
		}
		if docs[i].UploadedBy == nil {
			uploader := employeeID
			docs[i].UploadedBy = &uploader
		}
		if err := e.Repo.AppendDocument(ctx, tx, inst.ID, docs[i]); err != nil {
			return inst, err
		}
	}
	if err := e.Repo.UpdateInstanceCAS(ctx, tx, inst); err != nil {
		return inst, err
	}
	msg := fmt.Sprintf("Employee uploaded %d document(s).", len(docs))
	if err := e.Notify.Append(ctx, tx, inst.AssignedBy, msg); err != nil {
		return inst, err
	}
	if inst.ManagerID != nil {
		if err := e.Notify.Append(ctx, tx, *inst.ManagerID, msg); err != nil {
			return inst, err
		}
	}
	if err := tx.Commit(); err != nil {
		return inst, err
	}
	inst.Documents = append(inst.Documents, docs...)
	inst.Version++
	return inst, nil
}

// CompletionReviewOptions carries the final accept/reject verdict on an
// instance whose employee declared the project completed.
type CompletionReviewOptions struct {
	InstanceID   string
	ReviewerID   string
	ReviewerRole string
	Action       string
	Remark       string
}

func (e Engine) ReviewCompletion(ctx context.Context, opts CompletionReviewOptions) (domain.OnboardingInstance, error) {
	if opts.Action != "accept" && opts.Action != "reject" {
		return domain.OnboardingInstance{}, validationf("action must be accept or reject")
	}
	role := strings.ToUpper(strings.TrimSpace(opts.ReviewerRole))
	if role != domain.RoleAdmin && role != domain.RoleManager {
		return domain.OnboardingInstance{}, validationf("reviewerRole must be ADMIN or MANAGER")
	}
	inst, err := e.Repo.GetInstance(ctx, opts.InstanceID)
	if err != nil {
		return inst, err
	}
	switch role {
	case domain.RoleAdmin:
		if opts.ReviewerID != inst.AssignedBy {
			return inst, forbiddenf("only the assigning admin may review completion")
		}
	case domain.RoleManager:
		if inst.ManagerID == nil || opts.ReviewerID != *inst.ManagerID {
			return inst, forbiddenf("only the assigned manager may review completion")
		}
	}

	reviewedAt := e.timestamp()
	review := domain.CompletionReview{
		Remark:       opts.Remark,
		ReviewedAt:   &reviewedAt,
		ReviewedBy:   &opts.ReviewerID,
		ReviewerRole: role,
	}
	var outcome string
	if opts.Action == "accept" {
		review.Status = domain.ReviewAccepted
		inst.Status = domain.StatusCompleted
		completedAt := reviewedAt
		inst.CompletedAt = &completedAt
		outcome = "accepted"
	} else {
		review.Status = domain.ReviewRejected
		inst.ProjectStatus = domain.ProjectOngoing
		outcome = "rejected"
	}
	inst.CompletionReview = &review

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inst, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateInstanceCAS(ctx, tx, inst); err != nil {
		return inst, err
	}
	msg := fmt.Sprintf("Your project completion was %s.", outcome)
	if opts.Remark != "" {
		msg = fmt.Sprintf("Your project completion was %s: %s", outcome, opts.Remark)
	}
	if err := e.Notify.Append(ctx, tx, inst.EmployeeID, msg); err != nil {
		return inst, err
	}
	if err := tx.Commit(); err != nil {
		return inst, err
	}
	inst.Version++
	return inst, nil
}

// MarkNotificationRead flips a notification's read flag.
func (e Engine) MarkNotificationRead(ctx context.Context, id string) error {
	return e.Repo.MarkNotificationRead(ctx, id)
}
