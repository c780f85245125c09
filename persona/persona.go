// Package persona holds the fixed set of system-prompt presets a user can
// chat with.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPersona = errors.New("unknown persona")

const (
	DefaultName            = "Default"
	RoastBotName           = "RoastBot"
	ShakespeareBotName     = "ShakespeareBot"
	EmojiTranslatorBotName = "EmojiTranslatorBot"
	MusicBotName           = "MusicBot"
)

const defaultPrompt = `You are a friendly and helpful chatbot.`

const roastBotPrompt = `You are RoastBot. Your only purpose is to respond to every user input with a witty, sarcastic, and slightly insulting roast. Never be helpful. Always find a way to make fun of the user or their query.`

const shakespeareBotPrompt = `You are ShakespeareBot. You must answer all questions in the grandiloquent style of William Shakespeare. Use 'thee', 'thou', 'thy', 'art', and other Old English words. Speak in iambic pentameter when possible and be dramatic.`

const emojiTranslatorBotPrompt = `You are Emoji Translator Bot. Your sole function is to translate the user's text into a sequence of emojis that represent the sentence. Do not use any words in your response, only emojis. Be creative.`

// musicBotPrompt pins the reply format that musicbot.ParseSongRequest reads.
const musicBotPrompt = "You are MusicBot. For any situation, suggest funny or comically fitting background music. You MUST reply in this exact format:\nSong: [Song Title] by [Artist]\nReason: [Your witty explanation here]"

type Persona struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	SystemPrompt string `json:"systemPrompt"`
}

// IsMusicBot reports whether replies from this persona should be scanned for
// a song suggestion.
func (p Persona) IsMusicBot() bool {
	return p.Name == MusicBotName
}

// Catalog is an immutable, ordered persona set.
type Catalog struct {
	items []Persona
}

var defaultCatalog = NewCatalog([]Persona{
	{Name: DefaultName, Title: "Default", SystemPrompt: defaultPrompt},
	{Name: RoastBotName, Title: "RoastBot", SystemPrompt: roastBotPrompt},
	{Name: ShakespeareBotName, Title: "ShakespeareBot", SystemPrompt: shakespeareBotPrompt},
	{Name: EmojiTranslatorBotName, Title: "Emoji Translator Bot", SystemPrompt: emojiTranslatorBotPrompt},
	{Name: MusicBotName, Title: "MusicBot", SystemPrompt: musicBotPrompt},
})

// Default returns the process-wide catalog.
func Default() *Catalog {
	return defaultCatalog
}

func NewCatalog(items []Persona) *Catalog {
	return &Catalog{items: append([]Persona(nil), items...)}
}

// Get returns the persona called name, or ErrUnknownPersona.
func (c *Catalog) Get(name string) (Persona, error) {
	for _, p := range c.items {
		if p.Name == name {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, name)
}

func (c *Catalog) List() []Persona {
	return append([]Persona(nil), c.items...)
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.items))
	for _, p := range c.items {
		names = append(names, p.Name)
	}
	return names
}

// First is the persona a fresh session starts with.
func (c *Catalog) First() Persona {
	return c.items[0]
}

// Match finds the persona whose system prompt the given text starts with.
func (c *Catalog) Match(text string) (Persona, bool) {
	for _, p := range c.items {
		if strings.HasPrefix(text, p.SystemPrompt) {
			return p, true
		}
	}
	return Persona{}, false
}
