// Package gemini owns the shared Gemini client used by auto-moderation and
// the chat assistant.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var ErrNoContent = errors.New("model returned no content")

func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	log.Info("Gemini client initialized")
	return client, nil
}

// Text returns the text parts of the first candidate that has any.
func Text(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrNoContent
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return "", ErrNoContent
}
