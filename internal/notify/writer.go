package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Writer appends notifications inside the caller's transaction so that a
// failed primary mutation never leaves a stray notification behind.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, userID, message string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,user_id,message,is_read,created_at) VALUES (?,?,?,0,?)`,
		uuid.New().String(), userID, message, now().UTC().Format(time.RFC3339))
	return err
}
