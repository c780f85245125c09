// Package session runs chat turns: persona-seeded context handling, model
// generation and, for MusicBot, the song lookup.
package session

import (
	"context"
	"errors"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"personabot/conversation"
	"personabot/musicbot"
	"personabot/persona"
	"personabot/sentryhelper"
	"personabot/youtube"
)

var ErrEmptyInput = errors.New("message is empty")

const (
	MsgSongUnparseable = "The bot suggested a song, but I couldn't parse the title."
	MsgSongNotFound    = "Sorry, I couldn't find a playable version of that song."
	MsgSongFindError   = "Error finding song: "
	AudioCaption       = "Here's a sample of the track! (Full track may play)"
	MsgPersonaDeferred = "The current conversation keeps its persona until you clear it."
)

type Generator interface {
	Generate(ctx context.Context, c *conversation.Context) (string, error)
}

type Resolver interface {
	Resolve(ctx context.Context, query string) youtube.Result
}

// SuggestionRecorder logs songs MusicBot suggested.
type SuggestionRecorder interface {
	RecordSuggestion(sessionID, persona, query, url string) error
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
}

type Audio struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Caption string `json:"caption"`
}

// TurnResult is one finished turn. Persona is the session's selected persona;
// Speaker is the persona whose prompt seeded the context that answered, which
// differs after a switch until the session is cleared.
type TurnResult struct {
	Persona   string                `json:"persona"`
	Speaker   string                `json:"speaker"`
	User      conversation.Message  `json:"user"`
	Assistant conversation.Message  `json:"assistant"`
	Song      *musicbot.SongRequest `json:"song,omitempty"`
	Audio     *Audio                `json:"audio,omitempty"`
	Notices   []Notice              `json:"notices,omitempty"`
}

func (r *TurnResult) notice(level NoticeLevel, text string) {
	r.Notices = append(r.Notices, Notice{Level: level, Text: text})
}

type Stage string

const (
	StageThinking Stage = "thinking"
	StageFinding  Stage = "finding"
	StageDone     Stage = "done"
)

// ProgressFunc is told when a turn enters a slow stage. For StageFinding,
// detail is the song query.
type ProgressFunc func(stage Stage, detail string)

type Controller struct {
	catalog     *persona.Catalog
	generator   Generator
	resolver    Resolver
	recorder    SuggestionRecorder
	audioFormat string
	progress    ProgressFunc
}

type ControllerOption func(*Controller)

func WithRecorder(r SuggestionRecorder) ControllerOption {
	return func(c *Controller) { c.recorder = r }
}

func WithProgress(fn ProgressFunc) ControllerOption {
	return func(c *Controller) { c.progress = fn }
}

func NewController(catalog *persona.Catalog, generator Generator, resolver Resolver, audioFormat string, opts ...ControllerOption) *Controller {
	c := &Controller{
		catalog:     catalog,
		generator:   generator,
		resolver:    resolver,
		audioFormat: audioFormat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Catalog() *persona.Catalog {
	return c.catalog
}

func (c *Controller) report(stage Stage, detail string) {
	if c.progress != nil {
		c.progress(stage, detail)
	}
}

// SelectPersona changes the session's persona. An established context keeps
// the prompt it was seeded with until the session is cleared.
func (c *Controller) SelectPersona(s *Session, name string) error {
	if _, err := c.catalog.Get(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = name
	s.touch()
	return nil
}

// Clear wipes the session's messages and model context.
func (c *Controller) Clear(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Clear()
	s.touch()
}

// Turn runs one user turn. A *model.GenerationError aborts the turn after the
// user message has been recorded; song lookup problems only add notices.
func (c *Controller) Turn(ctx context.Context, s *Session, input string) (*TurnResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	p, err := c.catalog.Get(s.persona)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"module":    "session",
		"function":  "Turn",
		"sessionID": s.ID,
		"persona":   p.Name,
	})

	ctx, transaction := sentryhelper.StartTurnTransaction(ctx, p.Name, s.ID)
	defer transaction.Finish()

	state := s.state
	if state.EnsureContext(p.SystemPrompt, input) {
		logger.Debug("conversation context established")
	} else if err := state.UpdateContext(input); err != nil {
		return nil, err
	}
	state.AppendUser(input)
	sentryhelper.AddBreadcrumb(ctx, "chat", "user message")

	c.report(StageThinking, "")
	span := sentryhelper.StartSpan(ctx, "model.generate", "Generate assistant reply")
	reply, err := c.generator.Generate(ctx, state.Context())
	span.Finish()
	if err != nil {
		c.report(StageDone, "")
		logger.Errorf("turn abandoned: %v", err)
		sentryhelper.CaptureException(ctx, err)
		transaction.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	if err := state.RecordResponse(reply); err != nil {
		return nil, err
	}
	state.AppendAssistant(reply)

	msgs := state.Messages()
	speaker := p.Name
	if seeded, ok := c.catalog.Match(state.Context().Seed()); ok {
		speaker = seeded.Name
	}

	result := &TurnResult{
		Persona:   p.Name,
		Speaker:   speaker,
		User:      msgs[len(msgs)-2],
		Assistant: msgs[len(msgs)-1],
	}

	if p.IsMusicBot() && musicbot.MentionsSong(reply) {
		c.playSong(ctx, s.ID, p.Name, reply, result)
	}

	c.report(StageDone, "")
	transaction.Status = sentry.SpanStatusOK
	logger.Tracef("turn complete, %d messages", len(msgs))
	return result, nil
}

func (c *Controller) playSong(ctx context.Context, sessionID, personaName, reply string, result *TurnResult) {
	logger := log.WithFields(log.Fields{"module": "session", "function": "playSong", "sessionID": sessionID})

	req, ok := musicbot.ParseSongRequest(reply)
	if !ok {
		logger.Warn("song suggested but reply did not follow the Song: format")
		sentryhelper.CaptureMessage(ctx, "MusicBot reply mentioned a song without a Song: line")
		result.notice(NoticeInfo, MsgSongUnparseable)
		return
	}
	result.Song = &req

	c.report(StageFinding, req.Query)
	found := c.resolver.Resolve(ctx, req.Query)

	if found.Err != nil {
		result.notice(NoticeError, MsgSongFindError+found.Err.Error())
	}
	if found.Found() {
		result.Audio = &Audio{
			URL:     found.URL,
			Format:  c.audioFormat,
			Caption: AudioCaption,
		}
	} else {
		logger.Warnf("no playable version of %q", req.Query)
		result.notice(NoticeWarning, MsgSongNotFound)
	}

	if c.recorder != nil {
		if err := c.recorder.RecordSuggestion(sessionID, personaName, req.Query, found.URL); err != nil {
			logger.Warnf("failed to record suggestion: %v", err)
		}
	}
}
