package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kozaktomas/photo-tagger/internal/constants"
)

const geminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	client      *genai.Client
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

func NewGeminiProvider(ctx context.Context, apiKey string, pricing RequestPricing) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}, nil
}

func (p *GeminiProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *GeminiProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *GeminiProvider) trackUsage(inputTokens, outputTokens int32) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

func (p *GeminiProvider) Name() string {
	return geminiModel
}

func (p *GeminiProvider) AnalyzePhoto(ctx context.Context, imageData []byte, opts AnalyzeOptions) (*PhotoAnalysis, error) {
	const maxRetries = 5
	opts = opts.withDefaults()

	// Resize image to save costs
	resizedData, err := ResizeImage(imageData, constants.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	systemPrompt := buildAnalysisPrompt(opts)
	userMessage := buildUserMessage(opts)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: systemPrompt + "\n\n" + userMessage},
				{InlineData: &genai.Blob{Data: resizedData, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		// Track usage
		if result.UsageMetadata != nil {
			p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		var analysis PhotoAnalysis
		if err := json.Unmarshal([]byte(content), &analysis); err != nil {
			lastError = err
			contents = appendGeminiRetryContents(contents, content, parseFeedback(err))
			continue
		}

		if err := validateAnalysis(&analysis, opts); err != nil {
			lastError = err
			contents = appendGeminiRetryContents(contents, content, validationFeedback(err))
			continue
		}

		return &analysis, nil
	}

	return nil, fmt.Errorf("failed to get a valid analysis after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

// appendGeminiRetryContents adds the model response and the error feedback
// to the conversation for the next attempt.
func appendGeminiRetryContents(contents []*genai.Content, content, feedback string) []*genai.Content {
	return append(contents,
		&genai.Content{
			Role:  "model",
			Parts: []*genai.Part{{Text: content}},
		},
		&genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: feedback}},
		},
	)
}
