package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/dukerupert/chorequest/internal/backup"
	"github.com/dukerupert/chorequest/internal/deploy"
	"github.com/dukerupert/chorequest/internal/push"
	"github.com/dukerupert/chorequest/internal/secret"
)

var secretKeyRegexp = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// AdminHandler serves the operator endpoints: deploys, sealed secrets and
// backups.
type AdminHandler struct {
	deployer *deploy.Client
	vault    *secret.Vault
	backups  *backup.Manager
	logger   *slog.Logger
}

func NewAdminHandler(deployer *deploy.Client, vault *secret.Vault, backups *backup.Manager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{deployer: deployer, vault: vault, backups: backups, logger: logger}
}

// Deploy handles POST /api/admin/deploy
func (h *AdminHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoURL string `json:"repoUrl"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	url, err := h.deployer.Deploy(r.Context(), req.RepoURL)
	if err != nil {
		writeServiceError(w, h.logger, "deploy", err)
		return
	}
	h.logger.Info("deploy triggered", "repo", req.RepoURL, "url", url)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// PutSecret handles PUT /api/admin/secrets/{key}
func (h *AdminHandler) PutSecret(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !secretKeyRegexp.MatchString(key) {
		writeError(w, http.StatusBadRequest, "invalid secret key")
		return
	}
	var req struct {
		Value string `json:"value" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.vault.Put(key, req.Value); err != nil {
		if errors.Is(err, secret.ErrNoPassphrase) {
			writeError(w, http.StatusServiceUnavailable, "secret storage is not configured")
			return
		}
		h.logger.Error("store secret", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store secret")
		return
	}
	h.logger.Info("secret stored", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSecret handles DELETE /api/admin/secrets/{key}
func (h *AdminHandler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !secretKeyRegexp.MatchString(key) {
		writeError(w, http.StatusBadRequest, "invalid secret key")
		return
	}
	if err := h.vault.Delete(key); err != nil {
		h.logger.Error("delete secret", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete secret")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateVAPIDKeys handles POST /api/admin/push/keys. The pair is returned
// for the operator to place in the environment; nothing is stored.
func (h *AdminHandler) GenerateVAPIDKeys(w http.ResponseWriter, r *http.Request) {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		h.logger.Error("generate vapid keys", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": pub, "private_key": priv})
}

// ListBackups handles GET /api/admin/backups
func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	backups, err := h.backups.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.backups.Enabled(),
		"status":  h.backups.Status(),
		"backups": backups,
	})
}

// RunBackup handles POST /api/admin/backups
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	record, err := h.backups.RunNow(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "run backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// DownloadBackup handles GET /api/admin/backups/{id}/download. The file is
// still sealed.
func (h *AdminHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	body, record, err := h.backups.Download(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "download backup", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+record.Filename+`"`)
	if record.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream backup", "backup_id", id, "error", err)
	}
}
