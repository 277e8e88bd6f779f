// Package plangen produces plan content: fixed generic templates for new
// members and AI drafts built from a member's onboarding profile.
package plangen

import (
	"fmt"

	"alcyxob/gym-app/internal/domain"
)

func intp(v int) *int { return &v }

// Generic returns the starter plan handed out at onboarding.
func Generic(kind domain.PlanKind, p domain.Profile) domain.PlanContent {
	if kind == domain.PlanMeal {
		return genericMeal(p)
	}
	return genericWorkout(p)
}

func genericWorkout(p domain.Profile) domain.PlanContent {
	sets, reps := 3, "10-12"
	switch p.ExperienceLevel {
	case "intermediate":
		sets, reps = 4, "8-10"
	case "advanced":
		sets, reps = 5, "5-8"
	}

	item := func(name string) domain.PlanItem {
		return domain.PlanItem{Name: name, Sets: intp(sets), Reps: reps, Rest: "90s"}
	}

	days := []domain.PlanDay{
		{Day: "Monday", Title: "Upper body", Items: []domain.PlanItem{
			item("Bench press"), item("Bent-over row"), item("Overhead press"), item("Lat pulldown"),
		}},
		{Day: "Wednesday", Title: "Lower body", Items: []domain.PlanItem{
			item("Back squat"), item("Romanian deadlift"), item("Walking lunge"), item("Calf raise"),
		}},
		{Day: "Friday", Title: "Full body", Items: []domain.PlanItem{
			item("Deadlift"), item("Push-up"), item("Goblet squat"), item("Plank"),
		}},
	}
	if p.Goal == "lose_weight" || p.Goal == "endurance" {
		for i := range days {
			days[i].Items = append(days[i].Items, domain.PlanItem{Name: "Steady-state cardio", Reps: "20 min", Notes: "treadmill, bike or rower"})
		}
	}

	return domain.PlanContent{
		Title: "Starter workout plan",
		Notes: fmt.Sprintf("Three sessions a week for a %s lifter. Warm up for 10 minutes before each session.", levelOrDefault(p.ExperienceLevel)),
		Days:  days,
	}
}

func genericMeal(p domain.Profile) domain.PlanContent {
	protein := "Grilled chicken breast"
	snack := "Greek yogurt with berries"
	switch p.DietPreference {
	case "vegetarian":
		protein = "Paneer and chickpea curry"
	case "vegan":
		protein = "Tofu and lentil stir-fry"
		snack = "Roasted chickpeas"
	}

	calories := func(base int) *int {
		switch p.Goal {
		case "lose_weight":
			return intp(base * 85 / 100)
		case "build_muscle":
			return intp(base * 115 / 100)
		}
		return intp(base)
	}

	return domain.PlanContent{
		Title: "Starter meal plan",
		Notes: "Drink at least 2 litres of water a day. Adjust portions to your hunger.",
		Days: []domain.PlanDay{
			{Day: "Daily", Title: "Breakfast", Items: []domain.PlanItem{
				{Name: "Oatmeal with banana", Quantity: "1 bowl", Calories: calories(350)},
			}},
			{Day: "Daily", Title: "Lunch", Items: []domain.PlanItem{
				{Name: protein, Quantity: "1 plate", Calories: calories(550)},
				{Name: "Brown rice", Quantity: "1 cup", Calories: calories(220)},
			}},
			{Day: "Daily", Title: "Snack", Items: []domain.PlanItem{
				{Name: snack, Quantity: "1 cup", Calories: calories(180)},
			}},
			{Day: "Daily", Title: "Dinner", Items: []domain.PlanItem{
				{Name: "Vegetable soup", Quantity: "1 bowl", Calories: calories(200)},
				{Name: protein, Quantity: "half plate", Calories: calories(300)},
			}},
		},
	}
}

func levelOrDefault(level string) string {
	if level == "" {
		return "beginner"
	}
	return level
}
