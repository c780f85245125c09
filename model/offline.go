package model

import (
	"context"
	"strings"

	"personabot/persona"
)

// offlineReplies are canned lines used when no model provider is configured.
var offlineReplies = map[string][]string{
	persona.DefaultName: {
		"Happy to help! Tell me a bit more and I'll do my best.",
		"Good question. I'm running without a language model right now, but I'm listening.",
	},
	persona.RoastBotName: {
		"Wow, that's the most original thing nobody has ever said. Truly groundbreaking.",
		"I'd roast you harder, but it looks like life already did the prep work.",
	},
	persona.ShakespeareBotName: {
		"Pray, good friend, thy words do stir my heart; speak on, and I shall play my humble part.",
		"Alas! What light through yonder question breaks? 'Tis but a riddle, and my poor wit quakes.",
	},
	persona.EmojiTranslatorBotName: {
		"🤔💬➡️👀✨",
		"🙋‍♂️💭🎉🚀",
	},
	persona.MusicBotName: {
		"Song: Everybody Hurts by R.E.M.\nReason: Because this moment clearly calls for a dramatic slow-motion montage.",
		"Song: Never Gonna Give You Up by Rick Astley\nReason: You deserve a soundtrack that will never let you down.",
	},
}

const offlineGeneric = "I'm here, but I'm running without a language model."

// Offline answers from offlineReplies, picking the persona whose prompt seeds
// the transcript and rotating lines by turn.
type Offline struct {
	catalog *persona.Catalog
}

func NewOffline() *Offline {
	return &Offline{catalog: persona.Default()}
}

func (o *Offline) Name() string {
	return "offline"
}

func (o *Offline) Generate(_ context.Context, history string) (string, error) {
	p, ok := o.catalog.Match(history)
	if !ok {
		return offlineGeneric, nil
	}
	replies := offlineReplies[p.Name]
	if len(replies) == 0 {
		return offlineGeneric, nil
	}
	turns := strings.Count(history, "\nUser: ")
	return replies[(turns-1+len(replies))%len(replies)], nil
}
