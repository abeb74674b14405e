package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/chorequest/internal/auth"
	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

const defaultHistoryLimit = 100

type MemberHandler struct {
	db      *sql.DB
	members *store.MemberStore
	users   *store.UserStore
	points  *store.PointStore
	clock   clock.Clock
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewMemberHandler(db *sql.DB, clk clock.Clock, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{
		db:      db,
		members: store.NewMemberStore(db),
		users:   store.NewUserStore(db),
		points:  store.NewPointStore(db),
		clock:   clk,
		hub:     hub,
		logger:  logger,
	}
}

func (h *MemberHandler) broadcast(action string, id int64) {
	h.hub.Broadcast(websocket.NewMessage(websocket.EntityMember, action, id, nil))
}

// hiddenFrom reports whether m's score is withheld from viewerID.
func hiddenFrom(m model.FamilyMember, viewerID int64, now time.Time) bool {
	return m.ID != viewerID && m.IsHidden(now)
}

// buildLeaderboard ranks members, already sorted by points, for viewer.
// Equal scores share a rank. Members invisible to the viewer get no points
// and no rank, and follow the ranked entries so their position says nothing.
func buildLeaderboard(members []model.FamilyMember, viewerID int64, now time.Time) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(members))
	var hidden []model.LeaderboardEntry
	rank, prev := 0, 0
	for _, m := range members {
		e := model.LeaderboardEntry{
			ID:                 m.ID,
			Name:               m.Name,
			AvatarURL:          m.AvatarURL,
			StreakCount:        m.StreakCount,
			ShieldHP:           m.ShieldHP,
			PetName:            m.PetName,
			SelectedBackground: m.SelectedBackground,
			SelectedSkin:       m.SelectedSkin,
			ActiveVFX:          m.ActiveVFX,
		}
		if e.ActiveVFX == nil {
			e.ActiveVFX = []string{}
		}
		if hiddenFrom(m, viewerID, now) {
			e.Hidden = true
			hidden = append(hidden, e)
			continue
		}
		if len(entries) == 0 || m.TotalPoints != prev {
			rank = len(entries) + 1
		}
		prev = m.TotalPoints
		e.Rank = rank
		points := m.TotalPoints
		e.TotalPoints = &points
		entries = append(entries, e)
	}
	return append(entries, hidden...)
}

// Leaderboard handles GET /api/members
func (h *MemberHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List()
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, buildLeaderboard(members, auth.MemberID(r.Context()), h.clock.Now()))
}

// Get handles GET /api/members/{id}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	m, err := h.members.GetByID(id)
	if err != nil {
		h.logger.Error("get member", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if hiddenFrom(*m, auth.MemberID(r.Context()), h.clock.Now()) {
		m.TotalPoints = 0
		m.Hidden = true
	}
	writeJSON(w, http.StatusOK, m)
}

// Create handles POST /api/members. The member has no login.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name" validate:"required"`
		AvatarURL string `json:"avatar_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	m, err := h.members.Create(req.Name, req.AvatarURL, nil)
	if err != nil {
		h.logger.Error("create member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create member")
		return
	}
	h.broadcast("created", m.ID)
	writeJSON(w, http.StatusCreated, m)
}

// Delete handles DELETE /api/members/{id}. Tasks, inventory and ledger rows
// go with the member; a linked user and its sessions are removed too.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	found := false
	err = store.RunInTx(r.Context(), h.db, func(tx *sql.Tx) error {
		members := h.members.WithTx(tx)
		m, err := members.GetByID(id)
		if err != nil || m == nil {
			return err
		}
		found = true
		if err := members.Delete(id); err != nil {
			return err
		}
		if m.UserID != nil {
			return h.users.WithTx(tx).Delete(*m.UserID)
		}
		return nil
	})
	if err != nil {
		h.logger.Error("delete member", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete member")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	h.logger.Info("member deleted", "member_id", id)
	h.broadcast("deleted", id)
	h.hub.Broadcast(websocket.NewMessage(websocket.EntityTask, "refresh", 0, nil))
	w.WriteHeader(http.StatusNoContent)
}

// SetPoints handles PUT /api/members/{id}/points. The ledger records the
// difference from the previous balance.
func (h *MemberHandler) SetPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Points *int `json:"points" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var updated *model.FamilyMember
	err = store.RunInTx(r.Context(), h.db, func(tx *sql.Tx) error {
		members := h.members.WithTx(tx)
		m, err := members.GetByID(id)
		if err != nil {
			return err
		}
		if m == nil {
			return store.ErrNoRowsAffected
		}
		if err := members.SetPoints(id, *req.Points); err != nil {
			return err
		}
		if delta := *req.Points - m.TotalPoints; delta != 0 {
			if err := h.points.WithTx(tx).Record(id, delta, model.ReasonAdminAdjust, nil, nil); err != nil {
				return err
			}
		}
		updated, err = members.GetByID(id)
		return err
	})
	if errors.Is(err, store.ErrNoRowsAffected) {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.logger.Error("set points", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set points")
		return
	}

	h.logger.Info("points set", "member_id", id, "points", *req.Points)
	h.broadcast("updated", id)
	writeJSON(w, http.StatusOK, updated)
}

// Gift handles POST /api/members/{id}/gift
func (h *MemberHandler) Gift(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Points   int `json:"points"`
		ShieldHP int `json:"shield_hp"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Points == 0 && req.ShieldHP == 0 {
		writeError(w, http.StatusBadRequest, "points or shield_hp is required")
		return
	}

	var updated *model.FamilyMember
	err = store.RunInTx(r.Context(), h.db, func(tx *sql.Tx) error {
		members := h.members.WithTx(tx)
		if err := members.Gift(id, req.Points, req.ShieldHP); err != nil {
			return err
		}
		if req.Points != 0 {
			if err := h.points.WithTx(tx).Record(id, req.Points, model.ReasonAdminGift, nil, nil); err != nil {
				return err
			}
		}
		var err error
		updated, err = members.GetByID(id)
		return err
	})
	if errors.Is(err, store.ErrNoRowsAffected) {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.logger.Error("gift member", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to gift member")
		return
	}

	h.logger.Info("member gifted", "member_id", id, "points", req.Points, "shield_hp", req.ShieldHP)
	h.broadcast("updated", id)
	writeJSON(w, http.StatusOK, updated)
}

// SetPet handles PUT /api/members/me/pet
func (h *MemberHandler) SetPet(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())
	if memberID == 0 {
		writeError(w, http.StatusForbidden, "finish onboarding first")
		return
	}
	var req struct {
		PetName string `json:"pet_name" validate:"required,max=40"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.members.SetPetName(memberID, strings.TrimSpace(req.PetName)); err != nil {
		h.logger.Error("set pet name", "member_id", memberID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rename pet")
		return
	}
	m, err := h.members.GetByID(memberID)
	if err != nil {
		h.logger.Error("get member", "member_id", memberID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.broadcast("updated", memberID)
	writeJSON(w, http.StatusOK, m)
}

// PointsHistory handles GET /api/members/{id}/points/history. The ledger of
// an invisible member is closed to everyone else.
func (h *MemberHandler) PointsHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	m, err := h.members.GetByID(id)
	if err != nil {
		h.logger.Error("get member", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if hiddenFrom(*m, auth.MemberID(r.Context()), h.clock.Now()) {
		writeError(w, http.StatusForbidden, "member is invisible")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := h.points.ListByMember(id, limit)
	if err != nil {
		h.logger.Error("list point events", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if events == nil {
		events = []model.PointEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
