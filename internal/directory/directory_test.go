package directory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"onboard/internal/config"
	"onboard/internal/db"
	"onboard/internal/directory"
	"onboard/internal/domain"
	"onboard/internal/engine"
	"onboard/internal/migrate"
)

func newTestDirectory(t *testing.T) (directory.Directory, context.Context) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	d := directory.New(conn, config.Default(), zerolog.Nop())
	d.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return d, context.Background()
}

func TestRegisterAndLogin(t *testing.T) {
	d, ctx := newTestDirectory(t)
	u, err := d.Register(ctx, directory.RegisterOptions{
		Name:     "Ada Admin",
		Email:    "Ada@Example.com",
		Password: "pass1234",
		Role:     "admin",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}
	if u.Role != domain.RoleAdmin {
		t.Fatalf("role not normalized: %s", u.Role)
	}
	if u.DateOfJoining != "2024-01-01T00:00:00Z" {
		t.Fatalf("dateOfJoining = %s", u.DateOfJoining)
	}

	logged, token, err := d.Login(ctx, "ada@example.com", "pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != u.ID || token == "" {
		t.Fatalf("login result: id=%s token=%q", logged.ID, token)
	}

	var ve engine.ValidationError
	if _, _, err := d.Login(ctx, "ada@example.com", "wrong"); !errors.As(err, &ve) {
		t.Fatalf("bad password: %v", err)
	}
	if _, _, err := d.Login(ctx, "nobody@example.com", "pass1234"); !errors.As(err, &ve) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndBadRoles(t *testing.T) {
	d, ctx := newTestDirectory(t)
	if _, err := d.Register(ctx, directory.RegisterOptions{
		Name: "A", Email: "a@example.com", Password: "x",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	var ve engine.ValidationError
	if _, err := d.Register(ctx, directory.RegisterOptions{
		Name: "B", Email: "a@example.com", Password: "x",
	}); !errors.As(err, &ve) {
		t.Fatalf("duplicate email: %v", err)
	}
	if _, err := d.Register(ctx, directory.RegisterOptions{
		Name: "C", Email: "c@example.com", Password: "x", Role: "DIRECTOR",
	}); !errors.As(err, &ve) {
		t.Fatalf("bad role: %v", err)
	}
}

func TestListAndUpdateUsers(t *testing.T) {
	d, ctx := newTestDirectory(t)
	mgr, err := d.Register(ctx, directory.RegisterOptions{
		Name: "Max Manager", Email: "max@example.com", Password: "x", Role: "MANAGER",
	})
	if err != nil {
		t.Fatalf("register manager: %v", err)
	}
	emp, err := d.Register(ctx, directory.RegisterOptions{
		Name: "Eve Employee", Email: "eve@example.com", Password: "x",
	})
	if err != nil {
		t.Fatalf("register employee: %v", err)
	}

	managers, err := d.ListUsers(ctx, "manager")
	if err != nil || len(managers) != 1 || managers[0].ID != mgr.ID {
		t.Fatalf("managers = %+v (err %v)", managers, err)
	}
	var ve engine.ValidationError
	if _, err := d.ListUsers(ctx, "director"); !errors.As(err, &ve) {
		t.Fatalf("bad role filter: %v", err)
	}

	updated, err := d.UpdateUser(ctx, emp.ID, directory.UpdateUserOptions{
		ManagerID: &mgr.ID, ManagerSet: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ManagerID == nil || *updated.ManagerID != mgr.ID {
		t.Fatalf("managerId = %v", updated.ManagerID)
	}

	cleared, err := d.UpdateUser(ctx, emp.ID, directory.UpdateUserOptions{ManagerSet: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.ManagerID != nil {
		t.Fatalf("manager not cleared: %v", cleared.ManagerID)
	}

	if _, err := d.UpdateUser(ctx, emp.ID, directory.UpdateUserOptions{}); !errors.As(err, &ve) {
		t.Fatalf("empty update: %v", err)
	}
}
