package spotify

import (
	"context"
	"errors"
	"testing"

	spotifyclient "github.com/zmb3/spotify/v2"
)

type fakeSearcher struct {
	result *spotifyclient.SearchResult
	err    error
	query  string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ spotifyclient.SearchType, _ ...spotifyclient.RequestOption) (*spotifyclient.SearchResult, error) {
	f.query = query
	return f.result, f.err
}

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Everybody Hurts by R.E.M.", "track:Everybody Hurts artist:R.E.M."},
		{"Stand By Me by Ben E. King", "track:Stand By Me artist:Ben E. King"},
		{"Yesterday", "Yesterday"},
		{"by the way", "by the way"},
		{"Song by ", "Song"},
	}
	for _, tt := range tests {
		if got := searchTerms(tt.query); got != tt.want {
			t.Errorf("searchTerms(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	fake := &fakeSearcher{result: &spotifyclient.SearchResult{
		Tracks: &spotifyclient.FullTrackPage{
			Tracks: []spotifyclient.FullTrack{{
				SimpleTrack: spotifyclient.SimpleTrack{
					Name:    "Everybody Hurts",
					Artists: []spotifyclient.SimpleArtist{{Name: "R.E.M."}},
				},
			}},
		},
	}}
	c := &Canonicalizer{client: fake}

	got, err := c.Canonicalize(context.Background(), "everybody hurts by rem")
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	if got != "Everybody Hurts by R.E.M." {
		t.Errorf("Canonicalize() = %q", got)
	}
	if fake.query != "track:everybody hurts artist:rem" {
		t.Errorf("search query = %q", fake.query)
	}
}

func TestCanonicalizeNoMatch(t *testing.T) {
	c := &Canonicalizer{client: &fakeSearcher{result: &spotifyclient.SearchResult{}}}
	if _, err := c.Canonicalize(context.Background(), "nothing"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Canonicalize() error = %v, want ErrNoMatch", err)
	}

	boom := errors.New("rate limited")
	c = &Canonicalizer{client: &fakeSearcher{err: boom}}
	if _, err := c.Canonicalize(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("Canonicalize() error = %v, want %v", err, boom)
	}
}

func TestTrackInfoQuery(t *testing.T) {
	if got := (TrackInfo{Title: "Under Pressure", Artists: []string{"Queen", "David Bowie"}}).Query(); got != "Under Pressure by Queen, David Bowie" {
		t.Errorf("Query() = %q", got)
	}
	if got := (TrackInfo{Title: "Untitled"}).Query(); got != "Untitled" {
		t.Errorf("Query() = %q", got)
	}
}
