package ai

import (
	"fmt"

	"github.com/nutriplan-app/apiserver/types"
)

const promptTemplate = `You are a certified fitness nutritionist.

Generate a structured **7-day meal plan** based on the following user details:

Goal: %s
Daily Calories: %d
Diet Type: %s
Macros:
  - Protein: %d%%
  - Carbs: %d%%
  - Fats: %d%%

### OUTPUT FORMAT (VERY IMPORTANT)
Return ONLY valid JSON, no explanations, no markdown.

Schema:
[
  {
    "day": 1,
    "meals": [
      {
        "name": "Meal Name",
        "calories": 350,
        "ingredients": ["item1", "item2"]
      }
    ],
    "snacks": [
      {
        "name": "Snack Name",
        "calories": 150
      }
    ],
    "total_calories": 1800
  }
]

### Rules:
- 3 meals + 2 snacks PER DAY
- Respect calories and macro ratios
- All days must be included (day 1-7)
- JSON must be valid and parsable`

func buildPrompt(req types.MealPlanRequest) string {
	return fmt.Sprintf(
		promptTemplate,
		req.Goal,
		req.DailyCalories,
		req.DietType,
		req.Macros.Protein,
		req.Macros.Carbs,
		req.Macros.Fats,
	)
}
