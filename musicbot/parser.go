// Package musicbot reads MusicBot's "Song: <title> by <artist>" replies.
package musicbot

import "strings"

const songPrefix = "song:"

type SongRequest struct {
	RawLine string `json:"rawLine"`
	Query   string `json:"query"`
}

// MentionsSong is the cheap guard run before ParseSongRequest: it only checks
// that "song:" appears somewhere in the reply, in any case.
func MentionsSong(text string) bool {
	return strings.Contains(strings.ToLower(text), songPrefix)
}

// ParseSongRequest picks the first line that starts with "song:" (any case)
// and returns what follows the first colon, trimmed. It returns false when the
// reply does not follow the format.
func ParseSongRequest(text string) (SongRequest, bool) {
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(strings.ToLower(line), songPrefix) {
			continue
		}
		_, after, _ := strings.Cut(line, ":")
		return SongRequest{
			RawLine: line,
			Query:   strings.TrimSpace(after),
		}, true
	}
	return SongRequest{}, false
}
