package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nutriplan-app/apiserver/types"
)

func newPlanMock(t *testing.T) (*MealPlanRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewMealPlanRepository(db), mock
}

func TestMealPlanCreate(t *testing.T) {
	repo, mock := newPlanMock(t)

	mock.ExpectQuery(`INSERT INTO meal_plans (.+) RETURNING id`).
		WithArgs(1, "weight_loss", "vegan", 1800, 30, 45, 25, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	plan, err := repo.Create(context.Background(), types.MealPlan{
		UserID:        1,
		Goal:          "weight_loss",
		DietType:      "vegan",
		DailyCalories: 1800,
		MacroProtein:  30,
		MacroCarbs:    45,
		MacroFats:     25,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if plan.ID != 2 {
		t.Fatalf("id = %d", plan.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealPlanGetNotFound(t *testing.T) {
	repo, mock := newPlanMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM meal_plans WHERE id = \$1`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "goal", "diet_type", "daily_calories",
			"macro_protein", "macro_carbs", "macro_fats", "created_at",
		}))

	if _, err := repo.Get(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMealPlanAddAndGetDays(t *testing.T) {
	repo, mock := newPlanMock(t)

	mock.ExpectExec(`INSERT INTO meal_plan_days`).
		WithArgs(4, 1, `{"breakfast":"oats"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO meal_plan_days`).
		WithArgs(4, 2, `{"breakfast":"eggs"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM meal_plan_days WHERE meal_plan_id = \$1 ORDER BY day_number`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "meal_plan_id", "day_number", "meals", "created_at"}).
			AddRow(1, 4, 1, `{"breakfast":"oats"}`, now).
			AddRow(2, 4, 2, `{"breakfast":"eggs"}`, now))

	ctx := context.Background()
	err := repo.AddDays(ctx, 4, []types.MealPlanDay{
		{DayNumber: 1, Meals: `{"breakfast":"oats"}`},
		{DayNumber: 2, Meals: `{"breakfast":"eggs"}`},
	})
	if err != nil {
		t.Fatalf("AddDays: %v", err)
	}

	days, err := repo.GetDays(ctx, 4)
	if err != nil {
		t.Fatalf("GetDays: %v", err)
	}
	if len(days) != 2 || days[0].DayNumber != 1 || days[1].Meals != `{"breakfast":"eggs"}` {
		t.Fatalf("unexpected days %+v", days)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealPlanDeleteNotFound(t *testing.T) {
	repo, mock := newPlanMock(t)

	mock.ExpectExec(`DELETE FROM meal_plans WHERE id = \$1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
