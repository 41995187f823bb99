package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type PlanRepository struct {
	db base.DB
}

func NewPlanRepository(db base.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetActiveForTeacher тариф учителя, действующий в момент at, вместе с преимуществами
func (r *PlanRepository) GetActiveForTeacher(ctx context.Context, teacherID int64, at time.Time) (*model.SubscriptionPlan, error) {
	query := `
		SELECT p.id, p.name, p.is_premium, p.commission_pct,
		       COALESCE(ARRAY_AGG(b.name ORDER BY b.id) FILTER (WHERE b.id IS NOT NULL), '{}')
		FROM teacher_subscriptions ts
		JOIN subscription_plans p ON p.id = ts.plan_id
		LEFT JOIN plan_benefits b ON b.plan_id = p.id
		WHERE ts.teacher_id = $1
		  AND ts.is_active = TRUE
		  AND ts.starts_at <= $2
		  AND (ts.ends_at IS NULL OR ts.ends_at > $2)
		GROUP BY p.id, ts.starts_at
		ORDER BY ts.starts_at DESC
		LIMIT 1
	`

	var plan model.SubscriptionPlan
	err := r.db.QueryRow(ctx, query, teacherID, at).Scan(
		&plan.ID,
		&plan.Name,
		&plan.IsPremium,
		&plan.CommissionPct,
		&plan.Benefits,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active plan: %w", err)
	}

	return &plan, nil
}
