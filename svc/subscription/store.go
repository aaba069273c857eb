package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petvoice/subscriptions/pkg/pg"
	domain "github.com/petvoice/subscriptions/pkg/subscription"
)

const recordColumns = `user_id, billing_customer_id, plan_tier, subscription_status,
	subscription_end_date, is_cancelled, cancellation_type, cancellation_date,
	cancellation_effective_date, can_reactivate, immediate_cancellation_after_period_end,
	created_at, updated_at`

// column binds one patch field to its SQL column.
type column struct {
	field domain.Field
	name  string
	value func(r *domain.Record) any
}

var columns = []column{
	{domain.FieldBillingCustomerID, "billing_customer_id", func(r *domain.Record) any { return nullString(r.BillingCustomerID) }},
	{domain.FieldPlanTier, "plan_tier", func(r *domain.Record) any { return string(r.PlanTier) }},
	{domain.FieldSubscriptionStatus, "subscription_status", func(r *domain.Record) any { return string(r.SubscriptionStatus) }},
	{domain.FieldSubscriptionEndDate, "subscription_end_date", func(r *domain.Record) any { return r.SubscriptionEndDate }},
	{domain.FieldIsCancelled, "is_cancelled", func(r *domain.Record) any { return r.IsCancelled }},
	{domain.FieldCancellationType, "cancellation_type", func(r *domain.Record) any { return nullString(string(r.CancellationType)) }},
	{domain.FieldCancellationDate, "cancellation_date", func(r *domain.Record) any { return r.CancellationDate }},
	{domain.FieldCancellationEffectiveDate, "cancellation_effective_date", func(r *domain.Record) any { return r.CancellationEffectiveDate }},
	{domain.FieldCanReactivate, "can_reactivate", func(r *domain.Record) any { return r.CanReactivate }},
	{domain.FieldImmediateCancellationAfterPeriodEnd, "immediate_cancellation_after_period_end", func(r *domain.Record) any {
		return r.ImmediateCancellationAfterPeriodEnd
	}},
}

// Store is a RecordStore on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*domain.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM subscribers WHERE user_id = $1`, userID)
	return scanRecord(row)
}

func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*domain.Record, error) {
	if customerID == "" {
		return nil, domain.ErrRecordNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscribers WHERE billing_customer_id = $1
		 ORDER BY updated_at DESC LIMIT 1`, customerID)
	return scanRecord(row)
}

// Upsert writes only the masked columns. A missing row is created with the
// column defaults for everything else.
func (s *Store) Upsert(ctx context.Context, userID uuid.UUID, patch domain.Patch) (*domain.Record, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrInvalidUserID
	}
	query, args := upsertQuery(userID, patch)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if pg.IsCheckViolationError(err) {
			return nil, errors.Join(domain.ErrInvalidRecord, err)
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE user_id = $1`, userID)
	return err
}

func upsertQuery(userID uuid.UUID, patch domain.Patch) (string, []any) {
	names := []string{"user_id"}
	params := []string{"$1"}
	sets := make([]string, 0, len(columns)+1)
	args := []any{userID}

	for _, c := range columns {
		if !patch.Fields.Has(c.field) {
			continue
		}
		args = append(args, c.value(&patch.Values))
		names = append(names, c.name)
		params = append(params, fmt.Sprintf("$%d", len(args)))
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c.name, c.name))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`INSERT INTO subscribers (%s) VALUES (%s)
		ON CONFLICT (user_id) DO UPDATE SET %s
		RETURNING %s`,
		strings.Join(names, ", "), strings.Join(params, ", "), strings.Join(sets, ", "), recordColumns)
	return query, args
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	var (
		rec        domain.Record
		customerID *string
		cancelType *string
		tier       string
		status     string
	)
	err := row.Scan(
		&rec.UserID, &customerID, &tier, &status,
		&rec.SubscriptionEndDate, &rec.IsCancelled, &cancelType, &rec.CancellationDate,
		&rec.CancellationEffectiveDate, &rec.CanReactivate, &rec.ImmediateCancellationAfterPeriodEnd,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	if customerID != nil {
		rec.BillingCustomerID = *customerID
	}
	if cancelType != nil {
		rec.CancellationType = domain.CancellationType(*cancelType)
	}
	rec.PlanTier = domain.PlanTier(tier)
	rec.SubscriptionStatus = domain.SubscriptionStatus(status)
	rec.SubscriptionEndDate = utc(rec.SubscriptionEndDate)
	rec.CancellationDate = utc(rec.CancellationDate)
	rec.CancellationEffectiveDate = utc(rec.CancellationEffectiveDate)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
