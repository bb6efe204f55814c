package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

type userResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type categoryResponse struct {
	ID        int64                `json:"id"`
	Name      string               `json:"name"`
	Type      core.TransactionType `json:"type"`
	IsDefault bool                 `json:"is_default"`
	UserID    *int64               `json:"user_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type categoryDetailResponse struct {
	categoryResponse
	TransactionCount int64 `json:"transaction_count"`
}

type transactionResponse struct {
	ID          int64                `json:"id"`
	Type        core.TransactionType `json:"type"`
	Amount      core.Money           `json:"amount"`
	Description string               `json:"description"`
	OccurredOn  core.Date            `json:"occurred_on"`
	CategoryID  *int64               `json:"category_id,omitempty"`
	IsDeleted   bool                 `json:"is_deleted"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   *time.Time           `json:"updated_at,omitempty"`
}

func newUserResponse(u *core.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func newCategoryResponse(c *core.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		IsDefault: c.IsDefault,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
	}
}

func newTransactionResponse(t *core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		OccurredOn:  t.OccurredOn,
		CategoryID:  t.CategoryID,
		IsDeleted:   t.IsDeleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// writeRawJSON writes a pre-marshaled payload, used for cached reports.
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeError maps domain errors onto status codes. Anything unmapped is
// a 500 with a generic body; the detail goes to the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
	case errors.Is(err, core.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
