// Package gemini implements the integration with Google's Gemini API.
// It exposes a single text-generation operation; model selection, quota
// accounting, and response post-processing live in the bot core.
package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/genai"
)

// Client defines the AI backend operation used by the bot core.
type Client interface {
	// Generate sends the prompt to the named model and returns the raw text
	// payload. Transport errors (including rate-limit/overload responses)
	// are returned unmodified so the dispatch boundary can classify them.
	// An empty string with a nil error means the model produced no text.
	Generate(ctx context.Context, modelName, prompt string) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	baseConfig  *genai.GenerateContentConfig
}

// NewClient creates a new Gemini client with the provided API key.
func NewClient(ctx context.Context, apiKey string, log *slog.Logger) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully")
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		baseConfig:  baseCfg,
	}, nil
}

func (c *sdkClient) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	if modelName == "" {
		return "", fmt.Errorf("model name is required")
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	c.log.DebugContext(ctx, "Generating content", "model", modelName, "prompt_len", len(prompt))

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.genaiClient.Models.GenerateContent(ctx, modelName, contents, c.baseConfig)
	if err != nil {
		// No retries here: quota fallback and user-facing classification
		// happen in the caller.
		c.log.ErrorContext(ctx, "Gemini API call failed", "model", modelName, "error", err)
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "model", modelName, "reason", reasonMsg)
		return "", fmt.Errorf("generation blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content",
			"model", modelName, "finish_reason", finishReason)
		return "", nil
	}

	return resp.Text(), nil
}
