package pipeline

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiParser is the MessageParser backed by the Gemini API.
type GeminiParser struct {
	client *genai.Client
	model  string
}

// NewGeminiParser creates a Gemini client for the given API key and model.
func NewGeminiParser(ctx context.Context, apiKey, model string) (*GeminiParser, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewGeminiParser: %w", ErrParserNotConfigured)
	}
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiParser: create genai client: %w", err)
	}

	return &GeminiParser{client: client, model: model}, nil
}

// ParseMessage asks the model for the JSON description of one transaction.
// The deadline on ctx bounds the call.
func (p *GeminiParser) ParseMessage(ctx context.Context, message string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemPrompt(), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(buildUserPrompt(message)), config)
	if err != nil {
		return "", fmt.Errorf("ParseMessage: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("ParseMessage: empty response from model")
	}
	return rawText, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON object
// if the model ignored instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}'. Arrays are left alone
	// and rejected by the decoder.
	if strings.HasPrefix(s, "[") {
		return s
	}
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
