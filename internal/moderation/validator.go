package moderation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/gemini"
)

type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

type Request struct {
	SubmissionText   string
	ChallengeContext string
	Images           []Image
}

// Validator returns the classifier's raw answer. Callers run it through
// ParseVerdict.
type Validator interface {
	Validate(ctx context.Context, req Request) (string, error)
}

// MIMEType guesses an image type from its file name.
func MIMEType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

type GeminiValidator struct {
	model *genai.GenerativeModel
}

// NewGeminiValidator builds a JSON-answering model on a shared client. The
// caller owns and closes the client.
func NewGeminiValidator(client *genai.Client, modelName string) *GeminiValidator {
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	log.WithField("model", modelName).Info("Gemini validator initialized")
	return &GeminiValidator{model: model}
}

func (g *GeminiValidator) Validate(ctx context.Context, req Request) (string, error) {
	parts := []genai.Part{genai.Text(BuildPrompt(req.SubmissionText, req.ChallengeContext))}
	for _, img := range req.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = MIMEType(img.Name)
		}
		if !strings.HasPrefix(mime, "image/") {
			log.WithField("image", img.Name).Warn("Skipping proof with unsupported media type")
			continue
		}
		parts = append(parts, genai.ImageData(strings.TrimPrefix(mime, "image/"), img.Data))
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return gemini.Text(resp)
}
