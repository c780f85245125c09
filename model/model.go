// Package model wraps the dialogue model behind a single Generate call.
package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"personabot/config"
	"personabot/conversation"
)

// Model turns a rendered conversation transcript into the next bot utterance.
type Model interface {
	Generate(ctx context.Context, history string) (string, error)
	Name() string
}

// GenerationError marks a failed model call. The turn that triggered it is
// abandoned.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// promptFor asks the model to continue the transcript as the bot.
func promptFor(history string) string {
	return history + "\n" + botTurnMarker
}

const botTurnMarker = "Bot:"

type LoadFunc func(ctx context.Context) (Model, error)

// Loader builds the model once and hands the same instance to every caller.
// A failed load is not remembered, so the next caller tries again.
type Loader struct {
	mu    sync.Mutex
	load  LoadFunc
	model Model
}

func NewLoader(load LoadFunc) *Loader {
	return &Loader{load: load}
}

func (l *Loader) Get(ctx context.Context) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model != nil {
		return l.model, nil
	}

	m, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"module": "model", "model": m.Name()}).Info("dialogue model loaded")
	l.model = m
	return m, nil
}

// FromConfig picks the backend named by cfg.Provider.
func FromConfig(cfg config.ModelConfig) LoadFunc {
	return func(ctx context.Context) (Model, error) {
		switch cfg.Provider {
		case config.ProviderGemini:
			return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		case config.ProviderOpenAI:
			return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		case config.ProviderOffline, "":
			return NewOffline(), nil
		default:
			return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
		}
	}
}

// Responder is the stateless bridge between a conversation context and the
// shared model.
type Responder struct {
	loader   *Loader
	maxTurns int
}

func NewResponder(loader *Loader, maxTurns int) *Responder {
	return &Responder{loader: loader, maxTurns: maxTurns}
}

// Generate returns the model's reply to the context's latest user input. It
// does not modify c. Any failure comes back as a *GenerationError.
func (r *Responder) Generate(ctx context.Context, c *conversation.Context) (string, error) {
	logger := log.WithFields(log.Fields{"module": "model", "function": "Generate"})

	m, err := r.loader.Get(ctx)
	if err != nil {
		logger.Errorf("error loading model: %v", err)
		return "", &GenerationError{Err: err}
	}

	history := c.Render(r.maxTurns)
	logger.Tracef("generating with %d turns of context", c.Turns())

	reply, err := m.Generate(ctx, history)
	if err != nil {
		logger.Errorf("error generating response: %v", err)
		return "", &GenerationError{Err: err}
	}

	return strings.TrimSpace(reply), nil
}
