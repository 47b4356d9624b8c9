package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nutriplan-app/apiserver/internal/ai"
	"github.com/nutriplan-app/apiserver/internal/store"
	"github.com/nutriplan-app/apiserver/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidPlanRequest = errors.New("invalid meal plan request")
	ErrPlanGeneration     = errors.New("failed to generate meal plan")
)

// MealPlanRepository defines persistence operations for meal plans.
type MealPlanRepository interface {
	Create(ctx context.Context, plan types.MealPlan) (types.MealPlan, error)
	Get(ctx context.Context, id int) (types.MealPlan, error)
	ListByUser(ctx context.Context, userID, offset, limit int) ([]types.MealPlan, int, error)
	AddDays(ctx context.Context, planID int, days []types.MealPlanDay) error
	GetDays(ctx context.Context, planID int) ([]types.MealPlanDay, error)
	Delete(ctx context.Context, id int) error
}

// MealPlanService drives plan generation and retrieval.
type MealPlanService struct {
	repo      MealPlanRepository
	generator ai.Generator
	logger    *zap.SugaredLogger
}

func NewMealPlanService(repo MealPlanRepository, generator ai.Generator, logger *zap.SugaredLogger) *MealPlanService {
	return &MealPlanService{repo: repo, generator: generator, logger: logger}
}

// Create stores the plan row, asks the generator for the seven days, and
// attaches them. If generation or day storage fails the plan row is removed
// so no half-built plan is ever visible.
func (s *MealPlanService) Create(ctx context.Context, userID int, req types.MealPlanRequest) (types.MealPlan, error) {
	if s.generator == nil {
		return types.MealPlan{}, fmt.Errorf("%w: generator not configured", ErrPlanGeneration)
	}
	if err := validatePlanRequest(req); err != nil {
		return types.MealPlan{}, err
	}

	plan, err := s.repo.Create(ctx, types.MealPlan{
		UserID:        userID,
		Goal:          req.Goal,
		DietType:      req.DietType,
		DailyCalories: req.DailyCalories,
		MacroProtein:  req.Macros.Protein,
		MacroCarbs:    req.Macros.Carbs,
		MacroFats:     req.Macros.Fats,
	})
	if err != nil {
		return types.MealPlan{}, fmt.Errorf("failed to create meal plan: %w", err)
	}

	days, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.rollback(ctx, plan.ID)
		return types.MealPlan{}, fmt.Errorf("%w: %w", ErrPlanGeneration, err)
	}

	if err := s.repo.AddDays(ctx, plan.ID, days); err != nil {
		s.rollback(ctx, plan.ID)
		return types.MealPlan{}, fmt.Errorf("failed to store meal plan days: %w", err)
	}

	plan.Days, err = s.repo.GetDays(ctx, plan.ID)
	if err != nil {
		return types.MealPlan{}, err
	}
	return plan, nil
}

// Get returns a plan with its days.
func (s *MealPlanService) Get(ctx context.Context, id int) (types.MealPlan, error) {
	plan, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.MealPlan{}, err
	}
	plan.Days, err = s.repo.GetDays(ctx, id)
	if err != nil {
		return types.MealPlan{}, err
	}
	return plan, nil
}

// ListByUser returns a user's plans without their day payloads.
func (s *MealPlanService) ListByUser(ctx context.Context, userID, offset, limit int) ([]types.MealPlan, int, error) {
	return s.repo.ListByUser(ctx, userID, offset, limit)
}

func (s *MealPlanService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *MealPlanService) rollback(ctx context.Context, planID int) {
	if err := s.repo.Delete(ctx, planID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Errorw("failed to roll back meal plan", "plan_id", planID, "err", err)
	}
}

func validatePlanRequest(req types.MealPlanRequest) error {
	if req.Goal == "" || req.DietType == "" {
		return fmt.Errorf("%w: goal and diet_type are required", ErrInvalidPlanRequest)
	}
	if req.DailyCalories < 800 || req.DailyCalories > 10000 {
		return fmt.Errorf("%w: daily_calories must be between 800 and 10000", ErrInvalidPlanRequest)
	}
	if req.Macros.Protein < 0 || req.Macros.Carbs < 0 || req.Macros.Fats < 0 {
		return fmt.Errorf("%w: macro percentages must be non-negative", ErrInvalidPlanRequest)
	}
	if sum := req.Macros.Protein + req.Macros.Carbs + req.Macros.Fats; sum != 100 {
		return fmt.Errorf("%w: macro percentages must sum to 100, got %d", ErrInvalidPlanRequest, sum)
	}
	return nil
}
