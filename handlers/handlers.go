package handlers

// handlers are the http endpoints behind the chat widget.
// they resolve the caller's session from a cookie and hand the work to the session controller.

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"personabot/database"
	"personabot/model"
	"personabot/pages"
	"personabot/persona"
	"personabot/sentry"
	"personabot/session"
)

const (
	SessionCookie     = "personabot_session"
	defaultListLimit  = 10
	maxListLimit      = 100
	sessionCookieLife = 24 * 60 * 60
)

// SongHistory is the read side of the suggestion log.
type SongHistory interface {
	GetHistory(limit int) ([]database.SuggestionRecord, error)
	GetMostSuggested(limit int) ([]database.MostSuggestedRecord, error)
}

type ChatRequest struct {
	Message string `json:"message"`
}

type PersonaRequest struct {
	Persona string `json:"persona"`
}

type PersonaResponse struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type PageData struct {
	Personas     []persona.Persona
	Session      session.View
	SwitchNotice string
}

type Manager struct {
	Controller *session.Controller
	Store      *session.Store
	History    SongHistory
	Hints      *Hints
}

func NewManager(controller *session.Controller, store *session.Store, history SongHistory) *Manager {
	return &Manager{
		Controller: controller,
		Store:      store,
		History:    history,
		Hints:      NewHints(controller.Catalog()),
	}
}

// Router builds the gin engine with every chat route registered.
func (manager *Manager) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), sentry.GetSentryGin())
	router.SetHTMLTemplate(template.Must(template.New("chat").Parse(pages.ChatPage)))

	router.GET("/", manager.handleIndex)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := router.Group("/api")
	api.GET("/personas", manager.handlePersonas)
	api.GET("/session", manager.handleSession)
	api.POST("/session/persona", manager.handleSelectPersona)
	api.POST("/session/clear", manager.handleClear)
	api.POST("/chat", manager.handleChat)
	api.GET("/songs/history", manager.handleSongHistory)
	api.GET("/songs/top", manager.handleTopSongs)

	return router
}

// session returns the caller's session, creating one and setting the cookie
// when the cookie is missing or points at a pruned session.
func (manager *Manager) session(c *gin.Context) *session.Session {
	id, _ := c.Cookie(SessionCookie)
	s := manager.Store.GetOrCreate(id)
	if s.ID != id {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, s.ID, sessionCookieLife, "/", "", false, true)
	}
	return s
}

func (manager *Manager) handleIndex(c *gin.Context) {
	s := manager.session(c)
	c.HTML(http.StatusOK, "chat", PageData{
		Personas:     manager.Controller.Catalog().List(),
		Session:      s.Snapshot(),
		SwitchNotice: session.MsgPersonaDeferred,
	})
}

func (manager *Manager) handlePersonas(c *gin.Context) {
	catalog := manager.Controller.Catalog()
	personas := make([]PersonaResponse, 0, len(catalog.Names()))
	for _, p := range catalog.List() {
		personas = append(personas, PersonaResponse{Name: p.Name, Title: p.Title})
	}
	c.JSON(http.StatusOK, gin.H{
		"personas": personas,
		"default":  catalog.First().Name,
	})
}

func (manager *Manager) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, manager.session(c).Snapshot())
}

func (manager *Manager) handleSelectPersona(c *gin.Context) {
	var req PersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	s := manager.session(c)
	if err := manager.Controller.SelectPersona(s, req.Persona); err != nil {
		manager.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (manager *Manager) handleClear(c *gin.Context) {
	s := manager.session(c)
	manager.Controller.Clear(s)
	manager.Hints.ClearCooldown(s.ID)
	c.JSON(http.StatusOK, s.Snapshot())
}

func (manager *Manager) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	s := manager.session(c)
	result, err := manager.Controller.Turn(c.Request.Context(), s, req.Message)
	if err != nil {
		manager.respondError(c, err)
		return
	}

	if hint := manager.Hints.ShowIfApplicable(s.ID, result.Persona); hint != "" {
		result.Notices = append(result.Notices, session.Notice{Level: session.NoticeInfo, Text: hint})
	}
	c.JSON(http.StatusOK, result)
}

func (manager *Manager) handleSongHistory(c *gin.Context) {
	if manager.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Song history is disabled"})
		return
	}
	records, err := manager.History.GetHistory(listLimit(c))
	if err != nil {
		manager.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"songs": records})
}

func (manager *Manager) handleTopSongs(c *gin.Context) {
	if manager.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Song history is disabled"})
		return
	}
	records, err := manager.History.GetMostSuggested(listLimit(c))
	if err != nil {
		manager.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"songs": records})
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (manager *Manager) respondError(c *gin.Context, err error) {
	logger := log.WithFields(log.Fields{"module": "handlers", "function": "respondError", "path": c.FullPath()})

	var genErr *model.GenerationError
	switch {
	case errors.Is(err, persona.ErrUnknownPersona), errors.Is(err, session.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &genErr):
		logger.Warnf("model failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while processing your request"})
	}
}
