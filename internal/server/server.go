package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rturner/choreboard/internal/backup"
	"github.com/rturner/choreboard/internal/config"
	"github.com/rturner/choreboard/internal/handler"
	"github.com/rturner/choreboard/internal/middleware"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/schedule"
	"github.com/rturner/choreboard/internal/store"
	"github.com/rturner/choreboard/internal/timeutil"
	ws "github.com/rturner/choreboard/internal/websocket"
)

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	authH       *handler.AuthHandler
	entryH      *handler.EntryHandler
	occurrenceH *handler.OccurrenceHandler
	userH       *handler.UserHandler
	settingsH   *handler.SettingsHandler
	icsH        *handler.ICSHandler

	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	backupMgr    *backup.Manager
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	norm, err := timeutil.NewNormalizer(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	clock := timeutil.SystemClock()
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	entryStore := store.NewEntryStore(db)
	completionStore := store.NewCompletionStore(db)
	sessionStore := store.NewSessionStore(db)
	settingsStore := store.NewSettingsStore(db)

	eval := permission.NewEvaluator(permission.Policy{OwnerException: cfg.OwnerException})
	svc := schedule.NewService(entryStore, completionStore, eval, clock, norm, logger.With("component", "schedule"))

	backupMgr := backup.NewManager(cfg.Backup, db, settingsStore, func(s backup.Status) {
		hub.Broadcast(ws.Event{Type: "backup_" + string(s.State), Entity: "backup", Action: string(s.State)})
	}, logger.With("component", "backup"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, settingsStore, logger.With("component", "auth")),
		entryH:       handler.NewEntryHandler(svc, entryStore, eval, hub, logger.With("component", "entry")),
		occurrenceH:  handler.NewOccurrenceHandler(svc, entryStore, completionStore, norm, hub, logger.With("component", "occurrence")),
		userH:        handler.NewUserHandler(userStore, sessionStore, hub, logger.With("component", "user")),
		settingsH:    handler.NewSettingsHandler(settingsStore, backupMgr, logger.With("component", "settings")),
		icsH:         handler.NewICSHandler(svc, entryStore, completionStore, clock, norm, logger.With("component", "ics")),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		backupMgr:    backupMgr,
		logger:       logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// StartBackground launches the backup scheduler; Shutdown stops it.
func (s *Server) StartBackground(ctx context.Context) {
	s.backupMgr.Start(ctx)
}

func (s *Server) Shutdown() {
	s.backupMgr.Stop()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Occurrence feed and completion
	mux.HandleFunc("GET /api/occurrences", s.occurrenceH.List)
	mux.HandleFunc("POST /api/entries/{id}/complete", s.occurrenceH.Complete)
	mux.HandleFunc("DELETE /api/entries/{id}/complete", s.occurrenceH.Uncomplete)

	// Calendar entries; per-entry permission checks live in the schedule
	// service, not at the router.
	mux.HandleFunc("GET /api/entries", s.entryH.List)
	mux.HandleFunc("POST /api/entries", s.entryH.Create)
	mux.HandleFunc("GET /api/entries/{id}", s.entryH.Get)
	mux.HandleFunc("PUT /api/entries/{id}", s.entryH.Update)
	mux.HandleFunc("DELETE /api/entries/{id}", s.entryH.Delete)

	// Account management, gated on iam
	requireIAM := middleware.RequirePermission(permission.IAM)
	mux.Handle("GET /api/users", requireIAM(http.HandlerFunc(s.userH.List)))
	mux.Handle("POST /api/users", requireIAM(http.HandlerFunc(s.userH.Create)))
	mux.Handle("PUT /api/users/{id}", requireIAM(http.HandlerFunc(s.userH.Update)))
	mux.Handle("POST /api/users/{id}/disable", requireIAM(http.HandlerFunc(s.userH.SetDisabled)))

	// Instance settings and backups, admin only
	requireAdmin := middleware.RequirePermission(permission.Admin)
	mux.Handle("GET /api/settings", requireAdmin(http.HandlerFunc(s.settingsH.Get)))
	mux.Handle("PUT /api/settings", requireAdmin(http.HandlerFunc(s.settingsH.Update)))
	mux.Handle("POST /api/backup", requireAdmin(http.HandlerFunc(s.settingsH.BackupNow)))
	mux.Handle("GET /api/backup/status", requireAdmin(http.HandlerFunc(s.settingsH.BackupStatus)))

	// Calendar feed
	mux.HandleFunc("GET /calendar.ics", s.icsH.Feed)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handler(s.hub))
}
