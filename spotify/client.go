package spotify

import (
	"context"
	"errors"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"personabot/config"
)

var ErrNoMatch = errors.New("no matching track on spotify")

type TrackInfo struct {
	Title   string
	Artists []string
}

// Query renders the track the way MusicBot writes songs: "Title by Artist".
func (t TrackInfo) Query() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return t.Title + " by " + strings.Join(t.Artists, ", ")
}

type trackSearcher interface {
	Search(ctx context.Context, query string, t spotifyclient.SearchType, opts ...spotifyclient.RequestOption) (*spotifyclient.SearchResult, error)
}

// Canonicalizer rewrites a free-text song suggestion into Spotify's title and
// artist spelling, which gives the YouTube search a cleaner query.
type Canonicalizer struct {
	client trackSearcher
}

func NewCanonicalizer(ctx context.Context, cfg config.SpotifyConfig) (*Canonicalizer, error) {
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := creds.Token(ctx)
	if err != nil {
		sentry.CaptureException(err)
		return nil, err
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &Canonicalizer{client: spotifyclient.New(httpClient)}, nil
}

func (c *Canonicalizer) Canonicalize(ctx context.Context, query string) (string, error) {
	span := sentry.StartSpan(ctx, "spotify.search")
	span.Description = "Search Spotify API"
	span.SetTag("query", query)
	defer span.Finish()

	results, err := c.client.Search(ctx, searchTerms(query), spotifyclient.SearchTypeTrack, spotifyclient.Limit(1))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return "", err
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return "", ErrNoMatch
	}

	track := results.Tracks.Tracks[0]
	info := TrackInfo{Title: track.Name}
	for _, artist := range track.Artists {
		info.Artists = append(info.Artists, artist.Name)
	}

	log.Debugf("Canonicalized %q to '%s' by %v", query, info.Title, info.Artists)
	span.Status = sentry.SpanStatusOK
	return info.Query(), nil
}

// searchTerms turns "Title by Artist" into Spotify field filters. Queries
// without " by " are passed through.
func searchTerms(query string) string {
	idx := strings.LastIndex(strings.ToLower(query), " by ")
	if idx <= 0 {
		return strings.TrimSpace(query)
	}
	title := strings.TrimSpace(query[:idx])
	artist := strings.TrimSpace(query[idx+len(" by "):])
	if artist == "" {
		return title
	}
	return "track:" + title + " artist:" + artist
}
