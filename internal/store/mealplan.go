package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nutriplan-app/apiserver/types"
)

// MealPlanRepository handles persistence for meal plans and their days.
type MealPlanRepository struct {
	db *sql.DB
}

func NewMealPlanRepository(db *sql.DB) *MealPlanRepository {
	return &MealPlanRepository{db: db}
}

func (r *MealPlanRepository) Create(ctx context.Context, plan types.MealPlan) (types.MealPlan, error) {
	plan.CreatedAt = time.Now()

	const query = `
		INSERT INTO meal_plans (user_id, goal, diet_type, daily_calories,
			macro_protein, macro_carbs, macro_fats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		plan.UserID,
		plan.Goal,
		plan.DietType,
		plan.DailyCalories,
		plan.MacroProtein,
		plan.MacroCarbs,
		plan.MacroFats,
		plan.CreatedAt,
	).Scan(&plan.ID); err != nil {
		return types.MealPlan{}, err
	}
	return plan, nil
}

func (r *MealPlanRepository) Get(ctx context.Context, id int) (types.MealPlan, error) {
	const query = `
		SELECT id, user_id, goal, diet_type, daily_calories,
			macro_protein, macro_carbs, macro_fats, created_at
		FROM meal_plans
		WHERE id = $1`
	var plan types.MealPlan
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&plan.ID,
		&plan.UserID,
		&plan.Goal,
		&plan.DietType,
		&plan.DailyCalories,
		&plan.MacroProtein,
		&plan.MacroCarbs,
		&plan.MacroFats,
		&plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MealPlan{}, ErrNotFound
		}
		return types.MealPlan{}, err
	}
	return plan, nil
}

func (r *MealPlanRepository) ListByUser(ctx context.Context, userID, offset, limit int) ([]types.MealPlan, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM meal_plans WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, user_id, goal, diet_type, daily_calories,
			macro_protein, macro_carbs, macro_fats, created_at
		FROM meal_plans
		WHERE user_id = $1
		ORDER BY id DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	plans := make([]types.MealPlan, 0, limit)
	for rows.Next() {
		var plan types.MealPlan
		if err := rows.Scan(
			&plan.ID,
			&plan.UserID,
			&plan.Goal,
			&plan.DietType,
			&plan.DailyCalories,
			&plan.MacroProtein,
			&plan.MacroCarbs,
			&plan.MacroFats,
			&plan.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return plans, total, nil
}

// AddDays inserts the generated day rows for a plan.
func (r *MealPlanRepository) AddDays(ctx context.Context, planID int, days []types.MealPlanDay) error {
	const query = `
		INSERT INTO meal_plan_days (meal_plan_id, day_number, meals, created_at)
		VALUES ($1, $2, $3, $4)`
	now := time.Now()
	for _, day := range days {
		if _, err := r.db.ExecContext(ctx, query, planID, day.DayNumber, day.Meals, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *MealPlanRepository) GetDays(ctx context.Context, planID int) ([]types.MealPlanDay, error) {
	const query = `
		SELECT id, meal_plan_id, day_number, meals, created_at
		FROM meal_plan_days
		WHERE meal_plan_id = $1
		ORDER BY day_number`
	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []types.MealPlanDay
	for rows.Next() {
		var day types.MealPlanDay
		if err := rows.Scan(&day.ID, &day.MealPlanID, &day.DayNumber, &day.Meals, &day.CreatedAt); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

// Delete removes a plan; day rows go with it via the cascade constraint.
func (r *MealPlanRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM meal_plans WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}
