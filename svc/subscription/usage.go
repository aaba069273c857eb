package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Usage counts pets and emotion analyses. The tables are owned by the pet
// service; only reads and the post-downgrade trim happen here.
type Usage struct {
	pool *pgxpool.Pool
}

func NewUsage(pool *pgxpool.Pool) *Usage {
	return &Usage{pool: pool}
}

func (u *Usage) CountAnalysesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := u.pool.QueryRow(ctx,
		`SELECT count(*) FROM emotion_analyses WHERE user_id = $1 AND created_at >= $2`,
		userID, since).Scan(&n)
	return n, err
}

func (u *Usage) CountPets(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := u.pool.QueryRow(ctx,
		`SELECT count(*) FROM pets WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	return n, err
}

// TrimPets deletes every pet except the keep earliest created; ties go to
// the lowest id.
func (u *Usage) TrimPets(ctx context.Context, userID uuid.UUID, keep int) (int64, error) {
	tag, err := u.pool.Exec(ctx, `
		DELETE FROM pets
		WHERE user_id = $1
		  AND id NOT IN (
			SELECT id FROM pets
			WHERE user_id = $1
			ORDER BY created_at, id
			LIMIT $2
		  )`, userID, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
