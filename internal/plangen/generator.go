package plangen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"alcyxob/gym-app/internal/config"
	"alcyxob/gym-app/internal/domain"
)

// Generator drafts a plan for a member.
type Generator interface {
	// Generate returns the content and where it came from: SourceAI, or
	// SourceGeneric when the AI endpoint is unavailable.
	Generate(ctx context.Context, kind domain.PlanKind, profile domain.Profile) (domain.PlanContent, domain.PlanSource)
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// AIGenerator asks an OpenAI compatible chat completions endpoint for a plan
// and falls back to the generic templates on any failure.
type AIGenerator struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
	logger zerolog.Logger
}

var _ Generator = (*AIGenerator)(nil)

func NewAIGenerator(cfg config.AIConfig, logger zerolog.Logger) *AIGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIGenerator{
		apiKey: cfg.APIKey,
		apiURL: cfg.APIURL,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "plangen").Logger(),
	}
}

func (g *AIGenerator) Generate(ctx context.Context, kind domain.PlanKind, profile domain.Profile) (domain.PlanContent, domain.PlanSource) {
	if g.apiKey == "" {
		return Generic(kind, profile), domain.SourceGeneric
	}
	content, err := g.ask(ctx, kind, profile)
	if err != nil {
		g.logger.Warn().Err(err).Str("kind", string(kind)).Msg("ai plan generation failed, using generic template")
		return Generic(kind, profile), domain.SourceGeneric
	}
	return content, domain.SourceAI
}

const systemPrompt = `You are a certified personal trainer and nutritionist. Respond with JSON only, no markdown, matching:
{"title": string, "notes": string, "days": [{"day": string, "title": string, "items": [{"name": string, "sets": int|null, "reps": string, "rest": string, "quantity": string, "calories": int|null, "notes": string}]}]}
Workout plans use sets, reps and rest. Meal plans use quantity and calories.`

func userPrompt(kind domain.PlanKind, p domain.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a one-week %s plan for this gym member.\n", kind)
	if p.Age > 0 {
		fmt.Fprintf(&b, "Age: %d\n", p.Age)
	}
	if p.Gender != "" {
		fmt.Fprintf(&b, "Gender: %s\n", p.Gender)
	}
	if p.HeightCm > 0 {
		fmt.Fprintf(&b, "Height: %.0f cm\n", p.HeightCm)
	}
	if p.WeightKg > 0 {
		fmt.Fprintf(&b, "Weight: %.1f kg\n", p.WeightKg)
	}
	fmt.Fprintf(&b, "Goal: %s\n", orUnknown(p.Goal))
	fmt.Fprintf(&b, "Experience: %s\n", levelOrDefault(p.ExperienceLevel))
	if kind == domain.PlanMeal {
		fmt.Fprintf(&b, "Diet preference: %s\n", orUnknown(p.DietPreference))
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "not specified"
	}
	return s
}

func (g *AIGenerator) ask(ctx context.Context, kind domain.PlanKind, profile domain.Profile) (domain.PlanContent, error) {
	var content domain.PlanContent

	body, err := json.Marshal(openAIChatRequest{
		Model: g.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(kind, profile)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return content, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return content, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return content, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content, fmt.Errorf("chat completions: status %d", resp.StatusCode)
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return content, err
	}
	if len(chatResp.Choices) == 0 {
		return content, errors.New("chat completions: no choices")
	}

	raw := stripCodeFence(chatResp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return content, fmt.Errorf("decoding plan: %w", err)
	}
	if err := Validate(content); err != nil {
		return content, err
	}
	return content, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) > 2 {
			s = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return s
}

// Validate rejects content that would be useless to a member.
func Validate(c domain.PlanContent) error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("plan title is required")
	}
	if len(c.Days) == 0 {
		return errors.New("plan needs at least one day")
	}
	for i, d := range c.Days {
		if strings.TrimSpace(d.Day) == "" {
			return fmt.Errorf("day %d has no name", i+1)
		}
		if len(d.Items) == 0 {
			return fmt.Errorf("day %q has no items", d.Day)
		}
		for _, it := range d.Items {
			if strings.TrimSpace(it.Name) == "" {
				return fmt.Errorf("day %q has an item without a name", d.Day)
			}
		}
	}
	return nil
}
