package types

import "time"

// Macros is the requested macro split, in percent.
type Macros struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fats    int `json:"fats"`
}

// MealPlan is a generated seven-day plan owned by a user.
type MealPlan struct {
	ID            int       `json:"id" db:"id"`
	UserID        int       `json:"user_id" db:"user_id"`
	Goal          string    `json:"goal" db:"goal"`
	DietType      string    `json:"diet_type" db:"diet_type"`
	DailyCalories int       `json:"daily_calories" db:"daily_calories"`
	MacroProtein  int       `json:"macro_protein" db:"macro_protein"`
	MacroCarbs    int       `json:"macro_carbs" db:"macro_carbs"`
	MacroFats     int       `json:"macro_fats" db:"macro_fats"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	// Days is populated on single-plan fetches, not on list responses.
	Days []MealPlanDay `json:"days,omitempty"`
}

// MealPlanDay is one generated day of a plan. Meals holds the generator's
// JSON for that day verbatim.
type MealPlanDay struct {
	ID         int       `json:"id" db:"id"`
	MealPlanID int       `json:"meal_plan_id" db:"meal_plan_id"`
	DayNumber  int       `json:"day_number" db:"day_number"`
	Meals      string    `json:"meals" db:"meals"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MealPlanRequest is the payload a generation request carries.
type MealPlanRequest struct {
	Goal          string `json:"goal"`
	DietType      string `json:"diet_type"`
	DailyCalories int    `json:"daily_calories"`
	Macros        Macros `json:"macros"`
}
