package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/taskmill/taskmill/internal/api/shared"
	"github.com/taskmill/taskmill/internal/redact"
	"github.com/taskmill/taskmill/internal/service/auth"
)

// AuthHandler handles the token issuance endpoint.
type AuthHandler struct {
	tokenService auth.TokenService
	apiKeys      auth.APIKeyVerifier
	validator    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(tokenService auth.TokenService, apiKeys auth.APIKeyVerifier) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		apiKeys:      apiKeys,
		validator:    validator.New(),
	}
}

// IssueToken handles POST /auth/token: exchanges a valid API key for a
// short-lived service token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.apiKeys.Verify(req.APIKey); err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := h.tokenService.GenerateToken(r.Context(), req.ClientID)
	if err != nil {
		slog.Error("failed to generate service token",
			"error", redact.Error(err),
			"client_id", req.ClientID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
