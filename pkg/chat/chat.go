package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
)

// ErrRateLimited is returned when a user sent too many messages.
var ErrRateLimited = errors.New("too many chat requests, slow down")

// Assistant answers chat requests through Gemini, rate limited per user.
type Assistant struct {
	gemini  *Gemini
	limiter *Limiter
	now     func() time.Time
}

// NewAssistant returns an Assistant. A nil limiter disables rate limiting.
func NewAssistant(gemini *Gemini, limiter *Limiter) *Assistant {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &Assistant{gemini: gemini, limiter: limiter, now: time.Now}
}

// Configured registers the chat flags and returns the Assistant.
func Configured() *Assistant {
	apiKey := lflag.String("gemini-api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key used by /api/chat")
	apiURL := lflag.String("gemini-api-url", defaultGeminiURL, "Base URL of the Gemini API")
	model := lflag.String("gemini-model", defaultGeminiModel, "Gemini model used by /api/chat")
	timeout := lflag.Duration("gemini-timeout", 30*time.Second, "Timeout of a Gemini request")
	interval := lflag.Duration("chat-rate-interval", 3*time.Second, "Minimum average interval between chat requests of one user (0 disables)")

	a := &Assistant{now: time.Now}

	lflag.Do(func() {
		a.gemini = NewGemini(*apiURL, *apiKey, *model, *timeout)
		if err := a.gemini.Validate(); err != nil {
			panic(fmt.Sprintf("chat validation failed: %v", err))
		}
		a.limiter = NewLimiter(*interval, 5)
	})

	return a
}

// Enabled reports whether a Gemini API key is configured.
func (a *Assistant) Enabled() bool {
	return a.gemini != nil && a.gemini.Configured()
}

// Chat answers req for userID.
func (a *Assistant) Chat(ctx context.Context, userID string, req Request) (Response, error) {
	if !a.Enabled() {
		return Response{}, ErrNotConfigured
	}
	// rejected messages do not use up the user's budget
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, ErrEmptyMessage
	}
	if !a.limiter.Allow(userID) {
		return Response{}, ErrRateLimited
	}
	text, err := a.gemini.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	return Response{Response: text, Timestamp: a.now().UTC()}, nil
}
