// Package handler implements the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/chorequest/internal/auth"
	"github.com/dukerupert/chorequest/internal/backup"
	"github.com/dukerupert/chorequest/internal/deploy"
	"github.com/dukerupert/chorequest/internal/evidence"
	"github.com/dukerupert/chorequest/internal/goal"
	"github.com/dukerupert/chorequest/internal/shop"
	"github.com/dukerupert/chorequest/internal/task"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the body into v and runs its validate tags. On failure it
// writes a 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// actor is the task-service view of the caller.
func actor(r *http.Request) task.Actor {
	ac, _ := auth.FromContext(r.Context())
	return task.Actor{MemberID: ac.MemberID, IsAdmin: ac.Role == "admin"}
}

// statusFor maps domain errors to HTTP status codes. Zero means the error is
// unexpected and its text should not reach the client.
func statusFor(err error) int {
	var apiErr *deploy.APIError
	switch {
	case errors.As(err, &apiErr):
		return http.StatusInternalServerError
	case errors.Is(err, task.ErrNotFound), errors.Is(err, shop.ErrNotFound),
		errors.Is(err, goal.ErrNotFound), errors.Is(err, backup.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrForbidden), errors.Is(err, task.ErrNoMember),
		errors.Is(err, shop.ErrNoMember):
		return http.StatusForbidden
	case errors.Is(err, task.ErrAlreadyCompleted), errors.Is(err, task.ErrNotCompleted),
		errors.Is(err, task.ErrStealConflict), errors.Is(err, shop.ErrAlreadyOwned),
		errors.Is(err, shop.ErrBuffActive), errors.Is(err, shop.ErrEffectActive),
		errors.Is(err, goal.ErrRedeemed), errors.Is(err, goal.ErrNotReached),
		errors.Is(err, backup.ErrRunning):
		return http.StatusConflict
	case errors.Is(err, task.ErrUnassigned), errors.Is(err, task.ErrStealOwnTask),
		errors.Is(err, shop.ErrInsufficientPoints), errors.Is(err, shop.ErrNotEquippable),
		errors.Is(err, shop.ErrNotConsumable), errors.Is(err, shop.ErrJokerNeedsTask),
		errors.Is(err, shop.ErrInvalidItem), errors.Is(err, goal.ErrTitleMissing),
		errors.Is(err, evidence.ErrNotImage), errors.Is(err, deploy.ErrMissingRepo):
		return http.StatusBadRequest
	case errors.Is(err, evidence.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, task.ErrEvidenceDisabled), errors.Is(err, backup.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, deploy.ErrNoToken):
		return http.StatusInternalServerError
	}
	return 0
}

// writeServiceError reports err to the client. Known domain errors carry
// their own message; anything else is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	if status := statusFor(err); status != 0 {
		writeError(w, status, domainMessage(err))
		return
	}
	logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func domainMessage(err error) string {
	var apiErr *deploy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	for _, known := range []error{
		evidence.ErrNotImage, evidence.ErrTooLarge, deploy.ErrNoToken, deploy.ErrMissingRepo,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
