package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/customHttpClient"
	"github.com/akolanti/FinDocAPI/internal/metrics"
)

const geminiInstruction = "You are an OCR engine. Transcribe every piece of text on the supplied page exactly as printed, " +
	"keeping line breaks and table rows on their own lines with cells separated by two spaces. " +
	"Do not translate, summarize or add commentary. If the page has no text, reply with nothing."

type GeminiEngine struct {
	client    *genai.Client
	modelName string
}

func NewGeminiEngine(ctx context.Context, apiKey string, modelName string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.Client(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	logger.Info("Gemini OCR client created", "model", modelName)
	return &GeminiEngine{client: c, modelName: modelName}, nil
}

func (g *GeminiEngine) Name() string { return config.OCREngineGemini }

func (g *GeminiEngine) Recognize(ctx context.Context, pagePDF []byte, opts Options) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ocr_gemini", time.Since(start)) }()

	prompt := "Transcribe this page."
	if opts.Language != "" {
		prompt += " Expected languages (tesseract codes): " + opts.Language + "."
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(pagePDF, "application/pdf"),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(geminiInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, contentConfig)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}

func (g *GeminiEngine) Close() {
	logger.Info("Closing Gemini OCR client")
	g.client = nil
}
