package plangen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/gym-app/internal/config"
	"alcyxob/gym-app/internal/domain"
)

func TestGenericTemplatesAreValid(t *testing.T) {
	profiles := []domain.Profile{
		{},
		{ExperienceLevel: "advanced", Goal: "build_muscle", DietPreference: "vegan"},
		{ExperienceLevel: "intermediate", Goal: "lose_weight", DietPreference: "vegetarian"},
	}
	for _, p := range profiles {
		for _, kind := range []domain.PlanKind{domain.PlanWorkout, domain.PlanMeal} {
			assert.NoError(t, Validate(Generic(kind, p)), "kind=%s profile=%+v", kind, p)
		}
	}
}

func TestGenericFollowsProfile(t *testing.T) {
	vegan := Generic(domain.PlanMeal, domain.Profile{DietPreference: "vegan"})
	assert.Equal(t, "Tofu and lentil stir-fry", vegan.Days[1].Items[0].Name)

	advanced := Generic(domain.PlanWorkout, domain.Profile{ExperienceLevel: "advanced"})
	assert.Equal(t, 5, *advanced.Days[0].Items[0].Sets)

	cutting := Generic(domain.PlanWorkout, domain.Profile{Goal: "lose_weight"})
	last := cutting.Days[0].Items[len(cutting.Days[0].Items)-1]
	assert.Equal(t, "Steady-state cardio", last.Name)
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 2)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGen(url, key string) *AIGenerator {
	return NewAIGenerator(config.AIConfig{APIKey: key, APIURL: url, Model: "test-model", Timeout: time.Second}, zerolog.Nop())
}

func TestAIGeneratorUsesResponse(t *testing.T) {
	plan := "```json\n" + `{"title":"AI plan","days":[{"day":"Monday","items":[{"name":"Squat","sets":4,"reps":"6"}]}]}` + "\n```"
	srv := chatServer(t, http.StatusOK, plan)

	content, source := newGen(srv.URL, "key").Generate(context.Background(), domain.PlanWorkout, domain.Profile{Age: 30})
	assert.Equal(t, domain.SourceAI, source)
	assert.Equal(t, "AI plan", content.Title)
	assert.Equal(t, 4, *content.Days[0].Items[0].Sets)
}

func TestAIGeneratorFallsBack(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		_, source := newGen("http://unused", "").Generate(context.Background(), domain.PlanMeal, domain.Profile{})
		assert.Equal(t, domain.SourceGeneric, source)
	})
	t.Run("server error", func(t *testing.T) {
		srv := chatServer(t, http.StatusInternalServerError, "")
		content, source := newGen(srv.URL, "key").Generate(context.Background(), domain.PlanMeal, domain.Profile{})
		assert.Equal(t, domain.SourceGeneric, source)
		assert.Equal(t, "Starter meal plan", content.Title)
	})
	t.Run("invalid plan", func(t *testing.T) {
		srv := chatServer(t, http.StatusOK, `{"title":"","days":[]}`)
		_, source := newGen(srv.URL, "key").Generate(context.Background(), domain.PlanWorkout, domain.Profile{})
		assert.Equal(t, domain.SourceGeneric, source)
	})
}

func TestUserPromptMentionsProfile(t *testing.T) {
	p := userPrompt(domain.PlanMeal, domain.Profile{Age: 25, WeightKg: 70, Goal: "build_muscle", DietPreference: "vegan"})
	assert.Contains(t, p, "meal plan")
	assert.Contains(t, p, "Age: 25")
	assert.Contains(t, p, "Diet preference: vegan")
}
