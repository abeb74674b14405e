package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorequest/internal/backup"
	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/config"
	"github.com/dukerupert/chorequest/internal/deploy"
	"github.com/dukerupert/chorequest/internal/goal"
	"github.com/dukerupert/chorequest/internal/handler"
	"github.com/dukerupert/chorequest/internal/middleware"
	"github.com/dukerupert/chorequest/internal/push"
	"github.com/dukerupert/chorequest/internal/rollover"
	"github.com/dukerupert/chorequest/internal/secret"
	"github.com/dukerupert/chorequest/internal/shop"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/task"
	ws "github.com/dukerupert/chorequest/internal/websocket"
)

// Deps are the long-lived services main builds and shares with the jobs.
type Deps struct {
	DB        *sql.DB
	Config    config.Config
	Clock     clock.Clock
	Hub       *ws.Hub
	Tasks     *task.Service
	Shop      *shop.Service
	Goals     *goal.Service
	Evaluator *rollover.Evaluator
	Notifier  *push.Notifier
	Deployer  *deploy.Client
	Vault     *secret.Vault
	Backups   *backup.Manager
	Limiter   *middleware.RateLimiter
	Logger    *slog.Logger
}

type Server struct {
	hub      *ws.Hub
	authH    *handler.AuthHandler
	memberH  *handler.MemberHandler
	taskH    *handler.TaskHandler
	tmplH    *handler.TemplateHandler
	goalH    *handler.GoalHandler
	shopH    *handler.ShopHandler
	pushH    *handler.PushHandler
	adminH   *handler.AdminHandler
	sessions *store.SessionStore
	users    *store.UserStore
	members  *store.MemberStore
	limiter  *middleware.RateLimiter
	logger   *slog.Logger
}

func New(d Deps) *Server {
	logger := d.Logger
	limiter := d.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter()
	}
	members := store.NewMemberStore(d.DB)

	return &Server{
		hub:      d.Hub,
		authH:    handler.NewAuthHandler(d.DB, d.Config.IsAdminDNI, d.Config.SecureCookies, logger.With("component", "auth")),
		memberH:  handler.NewMemberHandler(d.DB, d.Clock, d.Hub, logger.With("component", "member")),
		taskH:    handler.NewTaskHandler(d.Tasks, d.Evaluator, members, d.Clock, logger.With("component", "task")),
		tmplH:    handler.NewTemplateHandler(store.NewTemplateStore(d.DB), d.Hub, logger.With("component", "template")),
		goalH:    handler.NewGoalHandler(d.Goals, logger.With("component", "goal")),
		shopH:    handler.NewShopHandler(d.Shop, logger.With("component", "shop")),
		pushH:    handler.NewPushHandler(store.NewPushStore(d.DB), d.Notifier, d.Config.Push.VAPIDPublicKey, logger.With("component", "push")),
		adminH:   handler.NewAdminHandler(d.Deployer, d.Vault, d.Backups, logger.With("component", "admin")),
		sessions: store.NewSessionStore(d.DB),
		users:    store.NewUserStore(d.DB),
		members:  members,
		limiter:  limiter,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessions, s.users, s.members)
	outerMux.Handle("/", authMiddleware(protectedMux))

	httpLogger := s.logger.With("component", "http")
	return middleware.RequestLogger(httpLogger)(middleware.Recoverer(httpLogger)(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return "auth:" + middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.limiter, keyFunc, 10, time.Minute)
	return rl(h).ServeHTTP
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/session", s.authH.Session)
	mux.HandleFunc("POST /api/onboarding", s.authH.Onboarding)
	mux.Handle("GET /api/users", admin(s.authH.ListUsers))
	mux.Handle("PUT /api/users/{id}/role", admin(s.authH.SetRole))

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.Leaderboard)
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.Handle("POST /api/members", admin(s.memberH.Create))
	mux.Handle("DELETE /api/members/{id}", admin(s.memberH.Delete))
	mux.Handle("PUT /api/members/{id}/points", admin(s.memberH.SetPoints))
	mux.Handle("POST /api/members/{id}/gift", admin(s.memberH.Gift))
	mux.HandleFunc("PUT /api/members/me/pet", s.memberH.SetPet)
	mux.HandleFunc("GET /api/members/{id}/points/history", s.memberH.PointsHistory)
	mux.HandleFunc("GET /api/members/{id}/inventory", s.shopH.MemberInventory)

	// Tasks
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/uncomplete", s.taskH.Uncomplete)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", s.taskH.Toggle)
	mux.HandleFunc("POST /api/tasks/{id}/steal", s.taskH.Steal)
	mux.HandleFunc("POST /api/tasks/{id}/reminder", s.taskH.ToggleReminder)
	mux.HandleFunc("POST /api/tasks/{id}/evidence", s.taskH.Evidence)
	mux.HandleFunc("GET /api/calendar", s.taskH.Calendar)

	// Templates
	mux.HandleFunc("GET /api/templates", s.tmplH.List)
	mux.Handle("POST /api/templates", admin(s.tmplH.Create))
	mux.Handle("DELETE /api/templates/{id}", admin(s.tmplH.Delete))

	// Goals
	mux.HandleFunc("GET /api/goals", s.goalH.List)
	mux.Handle("POST /api/goals", admin(s.goalH.Create))
	mux.Handle("DELETE /api/goals/{id}", admin(s.goalH.Delete))
	mux.Handle("POST /api/goals/{id}/activate", admin(s.goalH.Activate))
	mux.Handle("POST /api/goals/{id}/redeem", admin(s.goalH.Redeem))

	// Shop and inventory
	mux.HandleFunc("GET /api/shop/items", s.shopH.ListItems)
	mux.Handle("POST /api/shop/items", admin(s.shopH.CreateItem))
	mux.Handle("PUT /api/shop/items/{id}", admin(s.shopH.UpdateItem))
	mux.Handle("DELETE /api/shop/items/{id}", admin(s.shopH.DeleteItem))
	mux.HandleFunc("POST /api/shop/purchase", s.shopH.Purchase)
	mux.HandleFunc("GET /api/inventory", s.shopH.MyInventory)
	mux.HandleFunc("POST /api/inventory/{id}/equip", s.shopH.Equip)
	mux.HandleFunc("POST /api/inventory/{id}/use", s.shopH.Use)

	// Push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Admin
	mux.Handle("POST /api/admin/deploy", admin(s.adminH.Deploy))
	mux.Handle("PUT /api/admin/secrets/{key}", admin(s.adminH.PutSecret))
	mux.Handle("DELETE /api/admin/secrets/{key}", admin(s.adminH.DeleteSecret))
	mux.Handle("POST /api/admin/push/keys", admin(s.adminH.GenerateVAPIDKeys))
	mux.Handle("GET /api/admin/backups", admin(s.adminH.ListBackups))
	mux.Handle("POST /api/admin/backups", admin(s.adminH.RunBackup))
	mux.Handle("GET /api/admin/backups/{id}/download", admin(s.adminH.DownloadBackup))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}

// HTTPServer wraps the router with the listener timeouts. Writes get extra
// room for evidence uploads and backup downloads.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
