package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fedragon/walltok/internal/models"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-3-flash-preview"

// GenAI asks a Gemini model for a title, description and tags.
type GenAI struct {
	client *genai.Client
	model  string
}

func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAI{client: client, model: model}, nil
}

func Prompt(description string) string {
	return fmt.Sprintf("Generate a catchy wallpaper title, short description, and 3-5 tags for this media description: %q", description)
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"tags": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"title", "description", "tags"},
	}
}

func (g *GenAI) Generate(ctx context.Context, description string) (models.Metadata, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt(description)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		return models.Metadata{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	return Parse(resp.Text())
}

// Parse decodes a JSON metadata payload. Empty text is an error.
func Parse(text string) (models.Metadata, error) {
	if strings.TrimSpace(text) == "" {
		return models.Metadata{}, ErrEmptyResponse
	}

	var md models.Metadata
	if err := json.Unmarshal([]byte(text), &md); err != nil {
		return models.Metadata{}, fmt.Errorf("malformed metadata: %w", err)
	}
	if strings.TrimSpace(md.Title) == "" {
		return models.Metadata{}, ErrNoTitle
	}
	if md.Tags == nil {
		md.Tags = []string{}
	}

	return md, nil
}
