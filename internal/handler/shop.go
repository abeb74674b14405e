package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorequest/internal/auth"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/shop"
)

type ShopHandler struct {
	shop   *shop.Service
	logger *slog.Logger
}

func NewShopHandler(svc *shop.Service, logger *slog.Logger) *ShopHandler {
	return &ShopHandler{shop: svc, logger: logger}
}

type itemRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Cost        int    `json:"cost" validate:"gte=0"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Effect      string `json:"effect"`
	EffectHours int    `json:"effect_hours" validate:"gte=0"`
	EffectValue string `json:"effect_value"`
}

func (req itemRequest) toItem() model.ShopItem {
	return model.ShopItem{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Cost:        req.Cost,
		Icon:        req.Icon,
		Category:    model.Category(req.Category),
		Effect:      model.Effect(req.Effect),
		EffectHours: req.EffectHours,
		EffectValue: req.EffectValue,
	}
}

// ListItems handles GET /api/shop/items
func (h *ShopHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.shop.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list shop items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateItem handles POST /api/shop/items
func (h *ShopHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.shop.CreateItem(r.Context(), req.toItem())
	if err != nil {
		writeServiceError(w, h.logger, "create shop item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/shop/items/{id}
func (h *ShopHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item := req.toItem()
	item.ID = id
	updated, err := h.shop.UpdateItem(r.Context(), item)
	if err != nil {
		writeServiceError(w, h.logger, "update shop item", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteItem handles DELETE /api/shop/items/{id}
func (h *ShopHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.shop.DeleteItem(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete shop item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Purchase handles POST /api/shop/purchase
func (h *ShopHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID int64 `json:"item_id" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.shop.Purchase(r.Context(), auth.MemberID(r.Context()), req.ItemID)
	if err != nil {
		writeServiceError(w, h.logger, "purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// MyInventory handles GET /api/inventory
func (h *ShopHandler) MyInventory(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())
	if memberID == 0 {
		writeError(w, http.StatusForbidden, shop.ErrNoMember.Error())
		return
	}
	h.inventory(w, r, memberID)
}

// MemberInventory handles GET /api/members/{id}/inventory
func (h *ShopHandler) MemberInventory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	h.inventory(w, r, id)
}

func (h *ShopHandler) inventory(w http.ResponseWriter, r *http.Request, memberID int64) {
	entries, err := h.shop.Inventory(r.Context(), memberID)
	if err != nil {
		writeServiceError(w, h.logger, "list inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Equip handles POST /api/inventory/{id}/equip. It toggles the entry.
func (h *ShopHandler) Equip(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	entry, err := h.shop.Equip(r.Context(), auth.MemberID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, "equip", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Use handles POST /api/inventory/{id}/use. A joker needs task_id.
func (h *ShopHandler) Use(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		TaskID *int64 `json:"task_id"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	member, err := h.shop.Use(r.Context(), auth.MemberID(r.Context()), id, req.TaskID)
	if err != nil {
		writeServiceError(w, h.logger, "use item", err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}
