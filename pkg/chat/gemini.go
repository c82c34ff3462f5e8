package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/log"
)

var (
	// ErrNotConfigured is returned when no Gemini API key is set.
	ErrNotConfigured = errors.New("Gemini API key not configured")
	ErrEmptyMessage  = errors.New("message is required")
	// ErrUpstream is returned when Gemini answers with a non-2xx status.
	ErrUpstream = errors.New("Gemini API error")
	// ErrEmptyResponse is returned when Gemini produced no usable text,
	// either because there were no candidates or the prompt was blocked.
	ErrEmptyResponse = errors.New("no response from Gemini")
)

const (
	defaultGeminiURL   = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-2.0-flash"
	maxHistoryTurns    = 20
)

const systemPrompt = `You are the Powercast assistant, an expert in power grid operations, electricity forecasting and power plant dispatch for the Swiss transmission grid.

You help grid operators and plant managers with:
- interpreting load, solar and wind forecasts and their uncertainty bands
- planning dispatch, reserves and maintenance windows
- explaining forecast errors such as missed peaks, ramp errors and bias
- reading market signals like day-ahead prices and cross-border flows

Answer concisely and concretely. Use MW, MWh and CHF where appropriate. When data is uncertain or missing, say so instead of guessing, and recommend a safe operational action.`

var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body of POST /api/chat.
type Request struct {
	Message string    `json:"message"`
	History []Message `json:"history"`
}

// Response is returned to the caller of POST /api/chat.
type Response struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	SystemInstruction geminiContent          `json:"systemInstruction"`
	Contents          []geminiContent        `json:"contents"`
	SafetySettings    []geminiSafetySetting  `json:"safetySettings"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Gemini is the client of the generateContent endpoint.
type Gemini struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

// NewGemini returns a client for model. An empty apiKey makes every call
// fail with ErrNotConfigured.
func NewGemini(apiURL, apiKey, model string, timeout time.Duration) *Gemini {
	return &Gemini{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		client: common.HTTPClient(timeout),
	}
}

func (g *Gemini) Validate() error {
	if g.apiURL == "" {
		return errors.New("gemini-api-url is required")
	}
	if _, err := url.Parse(g.apiURL); err != nil {
		return fmt.Errorf("failed to parse gemini url (%s): %w", g.apiURL, err)
	}
	if g.model == "" {
		return errors.New("gemini-model is required")
	}
	return nil
}

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool {
	return g.apiKey != ""
}

// contents converts history and the new message into Gemini contents.
// Only the last maxHistoryTurns history entries are kept; roles other than
// "model" and "assistant" are sent as "user".
func contents(history []Message, message string) []geminiContent {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	out := make([]geminiContent, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == "model" || m.Role == "assistant" {
			role = "model"
		}
		out = append(out, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	return append(out, geminiContent{Role: "user", Parts: []geminiPart{{Text: message}}})
}

func buildRequest(req Request) geminiRequest {
	safety := make([]geminiSafetySetting, len(safetyCategories))
	for i, c := range safetyCategories {
		safety[i] = geminiSafetySetting{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"}
	}
	return geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          contents(req.History, req.Message),
		SafetySettings:    safety,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
	}
}

// Generate sends req to Gemini and returns the text of the first candidate.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	u, err := url.JoinPath(g.apiURL, "v1beta", "models", g.model+":generateContent")
	if err != nil {
		return "", fmt.Errorf("invalid gemini url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	log.Ctx(ctx).DebugContext(ctx, "sending chat to gemini", slog.String("model", g.model), slog.Int("turns", len(req.History)))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Ctx(ctx).WarnContext(
			ctx,
			"gemini returned an error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(msg)),
		)
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, out.Candidates[0].FinishReason)
	}
	return text.String(), nil
}
