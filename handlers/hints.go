package handlers

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"personabot/persona"
)

var personaTips = map[string]string{
	persona.DefaultName:            "Pro tip: the Default persona is a plain, helpful assistant",
	persona.RoastBotName:           "Pro tip: clear the conversation and pick RoastBot if you can take the heat",
	persona.ShakespeareBotName:     "Pro tip: clear the conversation and pick ShakespeareBot for answers in Early Modern English",
	persona.EmojiTranslatorBotName: "Pro tip: clear the conversation and pick Emoji Translator Bot to see your words as emoji",
	persona.MusicBotName:           "Pro tip: clear the conversation, pick MusicBot and tell it how you feel to get a song",
}

type tip struct {
	persona string
	text    string
}

// Hints hands out occasional tips about the other personas after a chat turn
type Hints struct {
	cooldowns   map[string]time.Time // sessionID -> last hint time
	cooldownMu  sync.RWMutex
	cooldownDur time.Duration
	hintChance  float32
	hints       []tip
}

// NewHints creates a Hints manager with tips for every persona in the catalog
func NewHints(catalog *persona.Catalog) *Hints {
	h := &Hints{
		cooldowns:   make(map[string]time.Time),
		cooldownDur: 5 * time.Minute,
		hintChance:  0.15, // 15% chance
	}
	for _, name := range catalog.Names() {
		if text, ok := personaTips[name]; ok {
			h.hints = append(h.hints, tip{persona: name, text: text})
		}
	}
	return h
}

// ShouldShowHint checks if a hint should be shown for this session.
// Tips never point at the persona the session is already using.
func (h *Hints) ShouldShowHint(sessionID, current string) (string, bool) {
	if rand.Float32() > h.hintChance {
		return "", false
	}

	h.cooldownMu.RLock()
	lastHint, hasCooldown := h.cooldowns[sessionID]
	h.cooldownMu.RUnlock()

	if hasCooldown && time.Since(lastHint) < h.cooldownDur {
		return "", false
	}

	candidates := make([]string, 0, len(h.hints))
	for _, t := range h.hints {
		if t.persona != current {
			candidates = append(candidates, t.text)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	hint := candidates[rand.Intn(len(candidates))]

	h.cooldownMu.Lock()
	h.cooldowns[sessionID] = time.Now()
	h.cooldownMu.Unlock()

	log.WithFields(log.Fields{"module": "handlers", "function": "ShouldShowHint"}).Debugf("Showing hint for session %s: %s", sessionID, hint)
	return hint, true
}

// ClearCooldown removes the cooldown for a session
func (h *Hints) ClearCooldown(sessionID string) {
	h.cooldownMu.Lock()
	delete(h.cooldowns, sessionID)
	h.cooldownMu.Unlock()
}

// GetCooldownRemaining returns remaining cooldown time for a session
func (h *Hints) GetCooldownRemaining(sessionID string) time.Duration {
	h.cooldownMu.RLock()
	defer h.cooldownMu.RUnlock()
	lastHint, exists := h.cooldowns[sessionID]
	if !exists {
		return 0
	}
	remaining := h.cooldownDur - time.Since(lastHint)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Sweep drops cooldowns that have already expired.
func (h *Hints) Sweep() int {
	h.cooldownMu.Lock()
	defer h.cooldownMu.Unlock()
	swept := 0
	for id, last := range h.cooldowns {
		if time.Since(last) >= h.cooldownDur {
			delete(h.cooldowns, id)
			swept++
		}
	}
	return swept
}

// ShowIfApplicable returns a formatted hint, or "" when none is due
func (h *Hints) ShowIfApplicable(sessionID, current string) string {
	hint, show := h.ShouldShowHint(sessionID, current)
	if show {
		return fmt.Sprintf("💡 %s", hint)
	}
	return ""
}
