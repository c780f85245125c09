package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"personabot/config"
	"personabot/database"
	"personabot/model"
	"personabot/persona"
	"personabot/session"
	"personabot/spotify"
	"personabot/youtube"
)

// app is everything a front end needs to run chat turns.
type app struct {
	db         *database.Database
	store      *session.Store
	controller *session.Controller
}

func buildApp(ctx context.Context, cfg *config.ConfigStruct, opts ...session.ControllerOption) (*app, error) {
	logger := log.WithFields(log.Fields{"module": "cmd", "function": "buildApp"})

	db, err := database.New(cfg.Cache.DBPath)
	if err != nil {
		return nil, err
	}

	resolverOpts := []youtube.Option{
		youtube.WithCache(db, time.Duration(cfg.Cache.TTLMinutes)*time.Minute),
	}
	if cfg.Spotify.IsEnabled() {
		canon, err := spotify.NewCanonicalizer(ctx, cfg.Spotify)
		if err != nil {
			logger.Warnf("spotify unavailable, using raw song queries: %v", err)
		} else {
			resolverOpts = append(resolverOpts, youtube.WithCanonicalizer(canon))
		}
	}
	resolver := youtube.NewResolver(cfg.Youtube, resolverOpts...)

	loader := model.NewLoader(model.FromConfig(cfg.Model))
	responder := model.NewResponder(loader, cfg.Options.MaxContextTurns)
	logger.Infof("using %s model provider", cfg.Model.Provider)

	catalog := persona.Default()
	opts = append([]session.ControllerOption{session.WithRecorder(db)}, opts...)

	return &app{
		db:         db,
		store:      session.NewStore(catalog.First().Name),
		controller: session.NewController(catalog, responder, resolver, cfg.Youtube.AudioFormat, opts...),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.WithFields(log.Fields{"module": "cmd", "function": "Close"}).Warnf("error closing database: %v", err)
	}
}
