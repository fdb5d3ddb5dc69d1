package engine_test

import (
	"errors"
	"testing"

	"onboard/internal/domain"
	"onboard/internal/engine"
)

func TestCreateTemplateNormalizesSteps(t *testing.T) {
	env := newTestEnv(t)
	wf, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateOptions{
		Name:        "Sales onboarding",
		Description: "first two weeks",
		Steps: []domain.Step{
			{Title: "HR paperwork", AssignedRole: "ADMIN"},
			{Title: "Shadow a call", AssignedRole: "Manager", StepDurationDays: 2},
		},
		AllottedTimeDays: 14,
		CreatedBy:        "admin-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if wf.Steps[0].StepOrder != 1 || wf.Steps[1].StepOrder != 2 {
		t.Fatalf("step orders = %+v", wf.Steps)
	}
	if wf.Steps[0].AssignedRole != domain.StepRoleAdmin || wf.Steps[1].AssignedRole != domain.StepRoleManager {
		t.Fatalf("roles not normalized: %+v", wf.Steps)
	}

	got, err := env.Engine.GetTemplate(env.Ctx, wf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Steps) != 2 || got.Steps[1].StepDurationDays != 2 {
		t.Fatalf("stored template = %+v", got)
	}

	all, err := env.Engine.ListTemplates(env.Ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list = %d templates (err %v)", len(all), err)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	env := newTestEnv(t)
	var ve engine.ValidationError

	_, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateOptions{Name: ""})
	if !errors.As(err, &ve) {
		t.Fatalf("missing name: %v", err)
	}
	_, err = env.Engine.CreateTemplate(env.Ctx, engine.TemplateOptions{Name: "x"})
	if !errors.As(err, &ve) {
		t.Fatalf("missing steps: %v", err)
	}
	_, err = env.Engine.CreateTemplate(env.Ctx, engine.TemplateOptions{
		Name:  "x",
		Steps: []domain.Step{{Title: "a", AssignedRole: "director"}},
	})
	if !errors.As(err, &ve) {
		t.Fatalf("bad role: %v", err)
	}
}
