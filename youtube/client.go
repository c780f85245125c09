package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"personabot/config"
	"personabot/sentryhelper"
)

var ErrEmptyQuery = errors.New("empty song query")

// lookupTimeout bounds a shared lookup once it no longer follows a caller's ctx.
const lookupTimeout = 2 * time.Minute

// Result is the outcome of one lookup. URL is empty when nothing playable was
// found; Err says why, if the lookup itself failed.
type Result struct {
	Query string
	URL   string
	Err   error
}

func (r Result) Found() bool {
	return r.URL != ""
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// VideoSearcher maps a free-text query to a YouTube video ID. An empty ID
// means no results.
type VideoSearcher func(ctx context.Context, query string) (string, error)

type Cache interface {
	GetCachedURL(query string, maxAge time.Duration) (string, bool)
	CacheURL(query, url string) error
}

type Canonicalizer interface {
	Canonicalize(ctx context.Context, query string) (string, error)
}

type Option func(*Resolver)

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

func WithCanonicalizer(c Canonicalizer) Option {
	return func(r *Resolver) { r.canon = c }
}

func WithRunner(run CommandRunner) Option {
	return func(r *Resolver) { r.run = run }
}

func WithSearcher(search VideoSearcher) Option {
	return func(r *Resolver) { r.search = search }
}

// Resolver turns a song query into a direct, playable audio URL using yt-dlp.
// When a YouTube API key is configured the video is picked through the Data
// API first; otherwise yt-dlp's own "ytsearch1:" search is used.
type Resolver struct {
	ytDlpPath     string
	socketTimeout int
	attempts      int
	run           CommandRunner
	search        VideoSearcher
	cache         Cache
	cacheTTL      time.Duration
	canon         Canonicalizer
	group         singleflight.Group
}

func NewResolver(cfg config.YoutubeConfig, opts ...Option) *Resolver {
	r := &Resolver{
		ytDlpPath:     cfg.YtDlpPath,
		socketTimeout: cfg.SocketTimeout,
		attempts:      cfg.Attempts,
		run:           execRunner,
	}
	if r.ytDlpPath == "" {
		r.ytDlpPath = "yt-dlp"
	}
	if r.attempts <= 0 {
		r.attempts = 1
	}
	if r.socketTimeout <= 0 {
		r.socketTimeout = 10
	}
	if cfg.APIKey != "" {
		r.search = apiSearcher(cfg.APIKey)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: lookup errors are logged, reported and returned in
// Result.Err with an empty URL.
func (r *Resolver) Resolve(ctx context.Context, query string) Result {
	logger := log.WithFields(log.Fields{"module": "youtube", "function": "Resolve", "query": query})

	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Err: ErrEmptyQuery}
	}

	span := sentryhelper.StartSpan(ctx, "youtube.resolve", "Resolve song query to audio URL")
	span.SetTag("query", query)
	defer span.Finish()

	// The shared lookup outlives any single caller; each caller stops waiting
	// when its own ctx is done.
	flight := r.group.DoChan(strings.ToLower(query), func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return r.lookup(lookupCtx, query)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		logger.Debugf("caller gave up waiting: %v", ctx.Err())
		span.Status = sentry.SpanStatusCanceled
		return Result{Query: query, Err: ctx.Err()}
	}

	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		logger.Warnf("error resolving audio: %v", err)
		sentryhelper.CaptureException(ctx, err)
		span.Status = sentry.SpanStatusInternalError
		return Result{Query: query, Err: err}
	}

	streamURL := v.(string)
	if streamURL == "" {
		logger.Debug("no playable result")
		span.Status = sentry.SpanStatusNotFound
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.SetData("shared", shared)
	return Result{Query: query, URL: streamURL}
}

func (r *Resolver) lookup(ctx context.Context, query string) (string, error) {
	logger := log.WithFields(log.Fields{"module": "youtube", "function": "lookup"})

	if r.cache != nil {
		if cached, ok := r.cache.GetCachedURL(query, r.cacheTTL); ok {
			logger.Tracef("cache hit for %q", query)
			return cached, nil
		}
	}

	searchQuery := query
	if r.canon != nil {
		if canonical, err := r.canon.Canonicalize(ctx, query); err != nil {
			logger.Debugf("canonicalize %q failed, using it as is: %v", query, err)
		} else {
			searchQuery = canonical
		}
	}

	target, err := r.target(ctx, searchQuery)
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", nil
	}

	streamURL, err := r.streamURL(ctx, target)
	if err != nil {
		return "", err
	}

	if streamURL != "" && r.cache != nil {
		if err := r.cache.CacheURL(query, streamURL); err != nil {
			logger.Warnf("failed to cache audio url: %v", err)
		}
	}
	return streamURL, nil
}

// target is what yt-dlp gets pointed at: a watch URL or a search expression.
func (r *Resolver) target(ctx context.Context, query string) (string, error) {
	if videoID := ParseYoutubeUrl(query); videoID != "" {
		return watchURL(videoID), nil
	}
	if r.search == nil {
		return "ytsearch1:" + query, nil
	}

	videoID, err := r.search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("error querying YouTube: %w", err)
	}
	if videoID == "" {
		return "", nil
	}
	return watchURL(videoID), nil
}

func (r *Resolver) streamURL(ctx context.Context, target string) (string, error) {
	logger := log.WithFields(log.Fields{"module": "youtube", "function": "streamURL", "target": target})

	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--socket-timeout", strconv.Itoa(r.socketTimeout),
		"--extractor-retries", "1",
		"-g",
		"--no-warnings",
		target,
	}

	var output []byte
	var err error
	for i := 0; i < r.attempts; i++ {
		output, err = r.run(ctx, r.ytDlpPath, args...)
		if err == nil {
			break
		}
		logger.WithFields(log.Fields{
			"attempt": i + 1,
			"error":   err,
			"output":  string(output),
		}).Error("yt-dlp command failed")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", fmt.Errorf("yt-dlp error after %d attempts: %v, output: %s", r.attempts, err, strings.TrimSpace(string(output)))
	}

	return parseStreamURL(output), nil
}

// parseStreamURL returns the first http(s) line of yt-dlp -g output.
func parseStreamURL(output []byte) string {
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "https://") || strings.HasPrefix(line, "http://") {
			return line
		}
	}
	return ""
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ParseYoutubeUrl returns the video ID of a youtube.com watch or youtu.be URL.
func ParseYoutubeUrl(_url string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(_url))
	if err != nil {
		return ""
	}

	switch parsedURL.Host {
	case "www.youtube.com", "youtube.com", "music.youtube.com":
		return parsedURL.Query().Get("v")
	case "youtu.be":
		return strings.Trim(parsedURL.Path, "/")
	}
	return ""
}

func apiSearcher(apiKey string) VideoSearcher {
	return func(ctx context.Context, query string) (string, error) {
		service, err := ytapi.NewService(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return "", fmt.Errorf("error creating YouTube client: %w", err)
		}

		response, err := service.Search.List([]string{"snippet"}).
			Q(query).
			MaxResults(1).
			Type("video").
			VideoCategoryId("10").
			Context(ctx).
			Do()
		if err != nil {
			return "", err
		}

		for _, item := range response.Items {
			if item.Id != nil && item.Id.Kind == "youtube#video" {
				return item.Id.VideoId, nil
			}
		}
		return "", nil
	}
}
