package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"onboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrStaleWrite reports a compare-and-swap update that lost against a
// concurrent writer: the instance exists but its version moved on.
var ErrStaleWrite = errors.New("instance was modified concurrently")

const instanceColumns = `id,employee_id,workflow_template_id,assigned_by,manager_id,progress,status,project_status,started_at,completed_at,deadline,review_status,review_remark,review_reviewed_at,review_reviewed_by,review_reviewer_role,version`

func (r Repo) InsertInstance(ctx context.Context, tx *sql.Tx, inst domain.OnboardingInstance) error {
	var review domain.CompletionReview
	if inst.CompletionReview != nil {
		review = *inst.CompletionReview
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO onboarding_instances(`+instanceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inst.ID, inst.EmployeeID, inst.WorkflowTemplateID, inst.AssignedBy, nullableStringPtr(inst.ManagerID),
		inst.Progress, inst.Status, inst.ProjectStatus, inst.StartedAt, nullableStringPtr(inst.CompletedAt),
		nullableStringPtr(inst.Deadline), nullable(review.Status), nullable(review.Remark),
		nullableStringPtr(review.ReviewedAt), nullableStringPtr(review.ReviewedBy), nullable(review.ReviewerRole),
		inst.Version)
	if err != nil {
		return err
	}
	for _, t := range inst.Tasks {
		if err := r.InsertTask(ctx, tx, inst.ID, t); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, instanceID string, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO onboarding_tasks(instance_id,step_order,title,assigned_to_role,status,manager_comment,reviewed_at) VALUES (?,?,?,?,?,?,?)`,
		instanceID, t.StepOrder, t.Title, t.AssignedToRole, t.Status, nullable(t.ManagerComment), nullableStringPtr(t.ReviewedAt))
	return err
}

// UpdateTask overwrites the review fields of the task identified by
// (instance, stepOrder).
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, instanceID string, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE onboarding_tasks SET status=?, manager_comment=?, reviewed_at=? WHERE instance_id=? AND step_order=?`,
		t.Status, nullable(t.ManagerComment), nullableStringPtr(t.ReviewedAt), instanceID, t.StepOrder)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AppendUpdate(ctx context.Context, tx *sql.Tx, instanceID string, u domain.Update) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO onboarding_updates(instance_id,date,note,created_by,status,manager_comment,reviewed_at,reviewed_by) VALUES (?,?,?,?,?,?,?,?)`,
		instanceID, u.Date, u.Note, u.CreatedBy, u.Status, nullable(u.ManagerComment), nullableStringPtr(u.ReviewedAt), nullableStringPtr(u.ReviewedBy))
	return err
}

func (r Repo) AppendDocument(ctx context.Context, tx *sql.Tx, instanceID string, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO onboarding_documents(instance_id,original_name,file_name,url,uploaded_at,uploaded_by,mime_type,size) VALUES (?,?,?,?,?,?,?,?)`,
		instanceID, d.OriginalName, d.FileName, d.URL, d.UploadedAt, nullableStringPtr(d.UploadedBy), nullable(d.MimeType), nullableInt64(d.Size))
	return err
}

// UpdateInstanceCAS writes the instance's mutable fields guarded by the
// version the caller read, bumping the version on success.
func (r Repo) UpdateInstanceCAS(ctx context.Context, tx *sql.Tx, inst domain.OnboardingInstance) error {
	var review domain.CompletionReview
	if inst.CompletionReview != nil {
		review = *inst.CompletionReview
	}
	res, err := tx.ExecContext(ctx, `UPDATE onboarding_instances SET progress=?, status=?, project_status=?, completed_at=?, review_status=?, review_remark=?, review_reviewed_at=?, review_reviewed_by=?, review_reviewer_role=?, version=version+1 WHERE id=? AND version=?`,
		inst.Progress, inst.Status, inst.ProjectStatus, nullableStringPtr(inst.CompletedAt),
		nullable(review.Status), nullable(review.Remark), nullableStringPtr(review.ReviewedAt),
		nullableStringPtr(review.ReviewedBy), nullable(review.ReviewerRole),
		inst.ID, inst.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM onboarding_instances WHERE id=?`, inst.ID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrStaleWrite
	}
	return nil
}

func scanInstance(scan func(dest ...any) error) (domain.OnboardingInstance, error) {
	var inst domain.OnboardingInstance
	var managerID, completedAt, deadline sql.NullString
	var reviewStatus, reviewRemark, reviewedAt, reviewedBy, reviewerRole sql.NullString
	err := scan(&inst.ID, &inst.EmployeeID, &inst.WorkflowTemplateID, &inst.AssignedBy, &managerID,
		&inst.Progress, &inst.Status, &inst.ProjectStatus, &inst.StartedAt, &completedAt, &deadline,
		&reviewStatus, &reviewRemark, &reviewedAt, &reviewedBy, &reviewerRole, &inst.Version)
	if err == sql.ErrNoRows {
		return inst, ErrNotFound
	}
	if err != nil {
		return inst, err
	}
	if managerID.Valid {
		inst.ManagerID = &managerID.String
	}
	if completedAt.Valid {
		inst.CompletedAt = &completedAt.String
	}
	if deadline.Valid {
		inst.Deadline = &deadline.String
	}
	if reviewStatus.Valid {
		review := domain.CompletionReview{Status: reviewStatus.String}
		if reviewRemark.Valid {
			review.Remark = reviewRemark.String
		}
		if reviewedAt.Valid {
			review.ReviewedAt = &reviewedAt.String
		}
		if reviewedBy.Valid {
			review.ReviewedBy = &reviewedBy.String
		}
		if reviewerRole.Valid {
			review.ReviewerRole = reviewerRole.String
		}
		inst.CompletionReview = &review
	}
	return inst, nil
}

func (r Repo) GetInstance(ctx context.Context, id string) (domain.OnboardingInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM onboarding_instances WHERE id=?`, id)
	inst, err := scanInstance(row.Scan)
	if err != nil {
		return inst, err
	}
	return r.loadChildren(ctx, inst)
}

func (r Repo) loadChildren(ctx context.Context, inst domain.OnboardingInstance) (domain.OnboardingInstance, error) {
	tasks, err := r.listTasks(ctx, inst.ID)
	if err != nil {
		return inst, err
	}
	updates, err := r.listUpdates(ctx, inst.ID)
	if err != nil {
		return inst, err
	}
	documents, err := r.listDocuments(ctx, inst.ID)
	if err != nil {
		return inst, err
	}
	inst.Tasks = tasks
	inst.Updates = updates
	inst.Documents = documents
	return inst, nil
}

func (r Repo) listTasks(ctx context.Context, instanceID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT step_order,title,assigned_to_role,status,manager_comment,reviewed_at FROM onboarding_tasks WHERE instance_id=? ORDER BY step_order ASC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		var comment, reviewedAt sql.NullString
		if err := rows.Scan(&t.StepOrder, &t.Title, &t.AssignedToRole, &t.Status, &comment, &reviewedAt); err != nil {
			return nil, err
		}
		if comment.Valid {
			t.ManagerComment = comment.String
		}
		if reviewedAt.Valid {
			t.ReviewedAt = &reviewedAt.String
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r Repo) listUpdates(ctx context.Context, instanceID string) ([]domain.Update, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT date,note,created_by,status,manager_comment,reviewed_at,reviewed_by FROM onboarding_updates WHERE instance_id=? ORDER BY id ASC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	updates := []domain.Update{}
	for rows.Next() {
		var u domain.Update
		var comment, reviewedAt, reviewedBy sql.NullString
		if err := rows.Scan(&u.Date, &u.Note, &u.CreatedBy, &u.Status, &comment, &reviewedAt, &reviewedBy); err != nil {
			return nil, err
		}
		if comment.Valid {
			u.ManagerComment = comment.String
		}
		if reviewedAt.Valid {
			u.ReviewedAt = &reviewedAt.String
		}
		if reviewedBy.Valid {
			u.ReviewedBy = &reviewedBy.String
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (r Repo) listDocuments(ctx context.Context, instanceID string) ([]domain.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT original_name,file_name,url,uploaded_at,uploaded_by,mime_type,size FROM onboarding_documents WHERE instance_id=? ORDER BY id ASC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	documents := []domain.Document{}
	for rows.Next() {
		var d domain.Document
		var uploadedBy, mimeType sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(&d.OriginalName, &d.FileName, &d.URL, &d.UploadedAt, &uploadedBy, &mimeType, &size); err != nil {
			return nil, err
		}
		if uploadedBy.Valid {
			d.UploadedBy = &uploadedBy.String
		}
		if mimeType.Valid {
			d.MimeType = mimeType.String
		}
		if size.Valid {
			d.Size = size.Int64
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

type InstanceFilters struct {
	EmployeeID string
	ManagerID  string
}

// ListInstances returns instances matching the filters, newest first, with
// tasks, updates and documents loaded.
func (r Repo) ListInstances(ctx context.Context, f InstanceFilters) ([]domain.OnboardingInstance, error) {
	var clauses []string
	var args []any
	if f.EmployeeID != "" {
		clauses = append(clauses, "employee_id=?")
		args = append(args, f.EmployeeID)
	}
	if f.ManagerID != "" {
		clauses = append(clauses, "manager_id=?")
		args = append(args, f.ManagerID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+instanceColumns+` FROM onboarding_instances `+where+` ORDER BY started_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OnboardingInstance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, inst := range res {
		loaded, err := r.loadChildren(ctx, inst)
		if err != nil {
			return nil, err
		}
		res[i] = loaded
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
