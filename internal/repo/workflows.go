package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"onboard/internal/domain"
)

func (r Repo) InsertTemplate(ctx context.Context, tx *sql.Tx, wf domain.WorkflowTemplate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflow_templates(id,name,description,allotted_time_days,created_by,created_at) VALUES (?,?,?,?,?,?)`,
		wf.ID, wf.Name, nullable(wf.Description), wf.AllottedTimeDays, nullableStringPtr(wf.CreatedBy), wf.CreatedAt)
	if err != nil {
		return err
	}
	for _, s := range wf.Steps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO workflow_steps(template_id,step_order,title,assigned_role,step_duration_days) VALUES (?,?,?,?,?)`,
			wf.ID, s.StepOrder, s.Title, s.AssignedRole, s.StepDurationDays); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.WorkflowTemplate, error) {
	var wf domain.WorkflowTemplate
	var description, createdBy sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,description,allotted_time_days,created_by,created_at FROM workflow_templates WHERE id=?`, id).
		Scan(&wf.ID, &wf.Name, &description, &wf.AllottedTimeDays, &createdBy, &wf.CreatedAt)
	if err == sql.ErrNoRows {
		return wf, ErrNotFound
	}
	if err != nil {
		return wf, err
	}
	if description.Valid {
		wf.Description = description.String
	}
	if createdBy.Valid {
		wf.CreatedBy = &createdBy.String
	}
	steps, err := r.listSteps(ctx, wf.ID)
	if err != nil {
		return wf, err
	}
	wf.Steps = steps
	return wf, nil
}

func (r Repo) listSteps(ctx context.Context, templateID string) ([]domain.Step, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT step_order,title,assigned_role,step_duration_days FROM workflow_steps WHERE template_id=? ORDER BY step_order ASC`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	steps := []domain.Step{}
	for rows.Next() {
		var s domain.Step
		if err := rows.Scan(&s.StepOrder, &s.Title, &s.AssignedRole, &s.StepDurationDays); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r Repo) ListTemplates(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description,allotted_time_days,created_by,created_at FROM workflow_templates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowTemplate
	for rows.Next() {
		var wf domain.WorkflowTemplate
		var description, createdBy sql.NullString
		if err := rows.Scan(&wf.ID, &wf.Name, &description, &wf.AllottedTimeDays, &createdBy, &wf.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			wf.Description = description.String
		}
		if createdBy.Valid {
			wf.CreatedBy = &createdBy.String
		}
		res = append(res, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, wf := range res {
		steps, err := r.listSteps(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
		res[i].Steps = steps
	}
	return res, nil
}

// ListTemplatesByIDs batch-fetches templates for name resolution.
func (r Repo) ListTemplatesByIDs(ctx context.Context, ids []string) (map[string]domain.WorkflowTemplate, error) {
	res := map[string]domain.WorkflowTemplate{}
	if len(ids) == 0 {
		return res, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT id,name,description,allotted_time_days,created_by,created_at FROM workflow_templates WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var wf domain.WorkflowTemplate
		var description, createdBy sql.NullString
		if err := rows.Scan(&wf.ID, &wf.Name, &description, &wf.AllottedTimeDays, &createdBy, &wf.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			wf.Description = description.String
		}
		if createdBy.Valid {
			wf.CreatedBy = &createdBy.String
		}
		res[wf.ID] = wf
	}
	return res, rows.Err()
}
