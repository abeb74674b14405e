package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorequest/internal/auth"
	"github.com/dukerupert/chorequest/internal/middleware"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
)

const (
	viewOnboarding = "onboarding"
	viewTasks      = "tasks"
)

type AuthHandler struct {
	db            *sql.DB
	users         *store.UserStore
	sessions      *store.SessionStore
	members       *store.MemberStore
	isAdminDNI    func(string) bool
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(db *sql.DB, isAdminDNI func(string) bool, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		db:            db,
		users:         store.NewUserStore(db),
		sessions:      store.NewSessionStore(db),
		members:       store.NewMemberStore(db),
		isAdminDNI:    isAdminDNI,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type sessionResponse struct {
	User     *model.User         `json:"user"`
	Member   *model.FamilyMember `json:"member"`
	NextView string              `json:"next_view"`
}

func (h *AuthHandler) sessionPayload(user *model.User) (*sessionResponse, error) {
	member, err := h.members.GetByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	view := viewTasks
	if !user.OnboardingCompleted {
		view = viewOnboarding
	}
	return &sessionResponse{User: user, Member: member, NextView: view}, nil
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(store.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	sess, err := h.sessions.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	payload, err := h.sessionPayload(user)
	if err != nil {
		h.logger.Error("load session payload", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.setSessionCookie(w, r, sess.Token)
	writeJSON(w, status, payload)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DNI      string `json:"dni" validate:"required"`
		Name     string `json:"name" validate:"required"`
		Password string `json:"password" validate:"required,min=6"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DNI = auth.NormalizeDNI(req.DNI)
	req.Name = strings.TrimSpace(req.Name)
	if err := auth.ValidateDNI(req.DNI); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role := model.RoleMember
	if h.isAdminDNI != nil && h.isAdminDNI(req.DNI) {
		role = model.RoleAdmin
	}

	user, err := h.users.Create(req.DNI, req.Name, hash, role)
	if err != nil {
		if store.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "DNI already registered")
			return
		}
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	h.startSession(w, r, user, http.StatusCreated)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DNI      string `json:"dni" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.GetByDNI(auth.NormalizeDNI(req.DNI))
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Same message for unknown DNI and wrong password.
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid DNI or password")
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "session_id", ac.SessionID, "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies || r.TLS != nil,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	payload, err := h.sessionPayload(user)
	if err != nil {
		h.logger.Error("load session payload", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Onboarding handles POST /api/onboarding. It records the avatar and creates
// the user's family member in one transaction.
func (h *AuthHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AvatarURL string `json:"avatar_url" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := auth.UserID(r.Context())

	var user *model.User
	err := store.RunInTx(r.Context(), h.db, func(tx *sql.Tx) error {
		users := h.users.WithTx(tx)
		members := h.members.WithTx(tx)

		var err error
		user, err = users.CompleteOnboarding(userID, req.AvatarURL)
		if err != nil {
			return err
		}
		existing, err := members.GetByUserID(userID)
		if err != nil {
			return err
		}
		if existing == nil {
			_, err = members.Create(user.Name, req.AvatarURL, &userID)
		}
		return err
	})
	if err != nil || user == nil {
		h.logger.Error("complete onboarding", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete onboarding")
		return
	}

	payload, err := h.sessionPayload(user)
	if err != nil {
		h.logger.Error("load session payload", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if payload.Member != nil {
		h.logger.Info("member onboarded", "user_id", userID, "member_id", payload.Member.ID)
	}
	writeJSON(w, http.StatusOK, payload)
}

// ListUsers handles GET /api/users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// SetRole handles PUT /api/users/{id}/role
func (h *AuthHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Role string `json:"role" validate:"required,oneof=admin member"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.SetRole(id, model.Role(req.Role))
	if err != nil {
		h.logger.Error("set role", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.Info("role changed", "user_id", id, "role", user.Role)
	writeJSON(w, http.StatusOK, user)
}
