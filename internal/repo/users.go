package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"onboard/internal/domain"
)

const userColumns = `id,name,email,password_hash,role,manager_id,date_of_joining`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var managerID sql.NullString
	err := scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &managerID, &u.DateOfJoining)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if managerID.Valid {
		u.ManagerID = &managerID.String
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, nullableStringPtr(u.ManagerID), u.DateOfJoining)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY date_of_joining DESC, id DESC`
	var args []any
	if role != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE role=? ORDER BY date_of_joining DESC, id DESC`
		args = append(args, role)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// ListUsersByIDs batch-fetches users for name resolution; missing ids are
// simply absent from the result map.
func (r Repo) ListUsersByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	res := map[string]domain.User{}
	if len(ids) == 0 {
		return res, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE id IN (%s)`, userColumns, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res[u.ID] = u
	}
	return res, rows.Err()
}

func (r Repo) UpdateUser(ctx context.Context, id string, name *string, managerID *string, managerSet bool) error {
	var fields []string
	var args []any
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if managerSet {
		fields = append(fields, "manager_id=?")
		args = append(args, nullableStringPtr(managerID))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
