package repo

import (
	"context"

	"onboard/internal/domain"
)

// ListNotifications returns a recipient's notifications newest first.
func (r Repo) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,message,is_read,created_at FROM notifications WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
