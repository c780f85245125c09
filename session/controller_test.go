package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personabot/conversation"
	"personabot/model"
	"personabot/persona"
	"personabot/youtube"
)

// scriptedGenerator replies from a fixed list and records every context it saw.
type scriptedGenerator struct {
	replies  []string
	err      error
	contexts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, c *conversation.Context) (string, error) {
	g.contexts = append(g.contexts, c.String())
	if g.err != nil {
		return "", &model.GenerationError{Err: g.err}
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

type stubResolver struct {
	result  youtube.Result
	queries []string
}

func (r *stubResolver) Resolve(_ context.Context, query string) youtube.Result {
	r.queries = append(r.queries, query)
	res := r.result
	res.Query = query
	return res
}

type suggestionLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *suggestionLog) RecordSuggestion(sessionID, personaName, query, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, strings.Join([]string{sessionID, personaName, query, url}, "|"))
	return nil
}

func newTestController(gen Generator, res Resolver, opts ...ControllerOption) (*Controller, *Store) {
	return NewController(persona.Default(), gen, res, "audio/webm", opts...), NewStore(persona.DefaultName)
}

func prompt(t *testing.T, name string) string {
	t.Helper()
	p, err := persona.Default().Get(name)
	require.NoError(t, err)
	return p.SystemPrompt
}

func TestTurnEstablishesContext(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Hello!"}}
	c, store := newTestController(gen, &stubResolver{})
	s := store.Create()

	result, err := c.Turn(context.Background(), s, "hi there")
	require.NoError(t, err)

	assert.Equal(t, persona.DefaultName, result.Persona)
	assert.Equal(t, conversation.RoleUser, result.User.Role)
	assert.Equal(t, "hi there", result.User.Content)
	assert.Equal(t, conversation.RoleAssistant, result.Assistant.Role)
	assert.Equal(t, "Hello!", result.Assistant.Content)
	assert.Nil(t, result.Audio)
	assert.Empty(t, result.Notices)

	require.Len(t, gen.contexts, 1)
	assert.Equal(t, prompt(t, persona.DefaultName)+"\nUser: hi there", gen.contexts[0])
	assert.True(t, s.Snapshot().Active)
}

func TestTurnOrderingInvariant(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"a", "b", "c", "d"}}
	c, store := newTestController(gen, &stubResolver{})
	s := store.Create()

	const turns = 4
	for i := 0; i < turns; i++ {
		_, err := c.Turn(context.Background(), s, "message")
		require.NoError(t, err)
	}

	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 2*turns)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, conversation.RoleUser, m.Role, i)
		} else {
			assert.Equal(t, conversation.RoleAssistant, m.Role, i)
		}
	}
	assert.Equal(t, "d", msgs[len(msgs)-1].Content)
}

func TestTurnThreadsHistory(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"first reply", "second reply"}}
	c, store := newTestController(gen, &stubResolver{})
	s := store.Create()

	_, err := c.Turn(context.Background(), s, "one")
	require.NoError(t, err)
	_, err = c.Turn(context.Background(), s, "two")
	require.NoError(t, err)

	want := prompt(t, persona.DefaultName) + "\nUser: one\nBot: first reply\nUser: two"
	assert.Equal(t, want, gen.contexts[1])
}

func TestPersonaSwitchKeepsContext(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"ok"}}
	c, store := newTestController(gen, &stubResolver{})
	s := store.Create()

	_, err := c.Turn(context.Background(), s, "one")
	require.NoError(t, err)

	require.NoError(t, c.SelectPersona(s, persona.RoastBotName))
	assert.Equal(t, persona.RoastBotName, s.Persona())

	result, err := c.Turn(context.Background(), s, "two")
	require.NoError(t, err)
	assert.Equal(t, persona.RoastBotName, result.Persona)
	assert.Equal(t, persona.DefaultName, result.Speaker, "the seeded persona still answers")

	second := gen.contexts[1]
	assert.True(t, strings.HasPrefix(second, prompt(t, persona.DefaultName)+"\nUser: one"))
	assert.NotContains(t, second, prompt(t, persona.RoastBotName))

	// After a clear the new persona takes effect.
	c.Clear(s)
	result, err = c.Turn(context.Background(), s, "three")
	require.NoError(t, err)
	assert.Equal(t, prompt(t, persona.RoastBotName)+"\nUser: three", gen.contexts[2])
	assert.Equal(t, persona.RoastBotName, result.Speaker)
}

func TestSelectPersonaUnknown(t *testing.T) {
	c, store := newTestController(&scriptedGenerator{replies: []string{"x"}}, &stubResolver{})
	s := store.Create()

	err := c.SelectPersona(s, "PirateBot")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
	assert.Equal(t, persona.DefaultName, s.Persona())
}

func TestTurnUnknownPersona(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"x"}}
	c := NewController(persona.Default(), gen, &stubResolver{}, "audio/webm")
	s := NewStore("Ghost").Create()

	_, err := c.Turn(context.Background(), s, "hello")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
	assert.Empty(t, s.Snapshot().Messages)
	assert.Empty(t, gen.contexts)
}

func TestTurnEmptyInput(t *testing.T) {
	c, store := newTestController(&scriptedGenerator{replies: []string{"x"}}, &stubResolver{})
	s := store.Create()

	_, err := c.Turn(context.Background(), s, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.False(t, s.Snapshot().Active)
}

func TestTurnGenerationError(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("model offline")}
	c, store := newTestController(gen, &stubResolver{})
	s := store.Create()

	_, err := c.Turn(context.Background(), s, "hello")

	var genErr *model.GenerationError
	require.ErrorAs(t, err, &genErr)

	view := s.Snapshot()
	require.Len(t, view.Messages, 1, "the user message stays recorded")
	assert.Equal(t, conversation.RoleUser, view.Messages[0].Role)
	assert.True(t, view.Active)
}

func TestClearResetsSession(t *testing.T) {
	c, store := newTestController(&scriptedGenerator{replies: []string{"x"}}, &stubResolver{})
	s := store.Create()
	_, err := c.Turn(context.Background(), s, "hello")
	require.NoError(t, err)

	c.Clear(s)

	view := s.Snapshot()
	assert.Empty(t, view.Messages)
	assert.False(t, view.Active)
}

func TestMusicBotPlaysResolvedSong(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Song: Everybody Hurts by R.E.M.\nReason: because you need a cry"}}
	res := &stubResolver{result: youtube.Result{URL: "https://cdn.example/hurts.webm"}}
	log := &suggestionLog{}
	c, store := newTestController(gen, res, WithRecorder(log))
	s := store.Create()
	require.NoError(t, c.SelectPersona(s, persona.MusicBotName))

	result, err := c.Turn(context.Background(), s, "I just failed my exam")
	require.NoError(t, err)

	assert.Equal(t, []string{"Everybody Hurts by R.E.M."}, res.queries)
	require.NotNil(t, result.Song)
	assert.Equal(t, "Everybody Hurts by R.E.M.", result.Song.Query)
	require.NotNil(t, result.Audio)
	assert.Equal(t, "https://cdn.example/hurts.webm", result.Audio.URL)
	assert.Equal(t, "audio/webm", result.Audio.Format)
	assert.Equal(t, AudioCaption, result.Audio.Caption)
	assert.Empty(t, result.Notices)
	assert.Equal(t, "Song: Everybody Hurts by R.E.M.\nReason: because you need a cry", result.Assistant.Content)

	require.Len(t, log.entries, 1)
	assert.Equal(t, s.ID+"|MusicBot|Everybody Hurts by R.E.M.|https://cdn.example/hurts.webm", log.entries[0])
}

func TestMusicBotSongNotFound(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Song: Everybody Hurts by R.E.M.\nReason: because you need a cry"}}
	c, store := newTestController(gen, &stubResolver{})
	s := store.Create()
	require.NoError(t, c.SelectPersona(s, persona.MusicBotName))

	result, err := c.Turn(context.Background(), s, "I just failed my exam")
	require.NoError(t, err)

	assert.Nil(t, result.Audio)
	assert.Equal(t, []Notice{{Level: NoticeWarning, Text: "Sorry, I couldn't find a playable version of that song."}}, result.Notices)
}

func TestMusicBotResolverFailureIsContained(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Song: One by U2\nReason: unity"}}
	res := &stubResolver{result: youtube.Result{Err: errors.New("yt-dlp exploded")}}
	c, store := newTestController(gen, res)
	s := store.Create()
	require.NoError(t, c.SelectPersona(s, persona.MusicBotName))

	result, err := c.Turn(context.Background(), s, "we're together")
	require.NoError(t, err)

	assert.Nil(t, result.Audio)
	require.Len(t, result.Notices, 2)
	assert.Equal(t, NoticeError, result.Notices[0].Level)
	assert.Equal(t, "Error finding song: yt-dlp exploded", result.Notices[0].Text)
	assert.Equal(t, Notice{Level: NoticeWarning, Text: MsgSongNotFound}, result.Notices[1])
	assert.Len(t, s.Snapshot().Messages, 2)
}

func TestMusicBotUnparseableSong(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Here is my song: a secret\nReason: none"}}
	res := &stubResolver{}
	c, store := newTestController(gen, res)
	s := store.Create()
	require.NoError(t, c.SelectPersona(s, persona.MusicBotName))

	result, err := c.Turn(context.Background(), s, "surprise me")
	require.NoError(t, err)

	assert.Empty(t, res.queries)
	assert.Nil(t, result.Song)
	assert.Equal(t, []Notice{{Level: NoticeInfo, Text: MsgSongUnparseable}}, result.Notices)
}

func TestSongLookupOnlyForMusicBot(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Song: One by U2\nReason: unity"}}
	res := &stubResolver{result: youtube.Result{URL: "https://cdn/x"}}
	c, store := newTestController(gen, res)
	s := store.Create()

	result, err := c.Turn(context.Background(), s, "hello")
	require.NoError(t, err)

	assert.Empty(t, res.queries)
	assert.Nil(t, result.Audio)
	assert.Nil(t, result.Song)
}

func TestMusicBotWithoutSongMention(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"I have no idea, sorry."}}
	res := &stubResolver{}
	c, store := newTestController(gen, res)
	s := store.Create()
	require.NoError(t, c.SelectPersona(s, persona.MusicBotName))

	result, err := c.Turn(context.Background(), s, "hmm")
	require.NoError(t, err)

	assert.Empty(t, res.queries)
	assert.Empty(t, result.Notices)
}

func TestProgressStages(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Song: One by U2\nReason: unity"}}
	res := &stubResolver{result: youtube.Result{URL: "https://cdn/x"}}
	var stages []string
	c, store := newTestController(gen, res, WithProgress(func(stage Stage, detail string) {
		stages = append(stages, string(stage)+":"+detail)
	}))
	s := store.Create()
	require.NoError(t, c.SelectPersona(s, persona.MusicBotName))

	_, err := c.Turn(context.Background(), s, "go")
	require.NoError(t, err)

	assert.Equal(t, []string{"thinking:", "finding:One by U2", "done:"}, stages)
}
