package chat

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/gemini"
)

// GeminiGenerator answers prompts with a plain-text Gemini model.
type GeminiGenerator struct {
	model *genai.GenerativeModel
}

var _ Generator = (*GeminiGenerator)(nil)

func NewGeminiGenerator(client *genai.Client, modelName string) *GeminiGenerator {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	log.WithField("model", modelName).Info("Gemini chat model initialized")
	return &GeminiGenerator{model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return gemini.Text(resp)
}
