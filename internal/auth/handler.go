package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"ztgate/internal/account"
	"ztgate/internal/clientip"
	"ztgate/internal/httpx"
	"ztgate/internal/metrics"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

type Handler struct {
	accounts account.Store
	guard    *Guard
	tokens   *TokenAuthority
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewHandler(accounts account.Store, guard *Guard, tokens *TokenAuthority, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		guard:    guard,
		tokens:   tokens,
		metrics:  m,
		logger:   logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies the admin credentials behind the brute-force guard. Banned
// sources are rejected before the password is even looked at.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if body.Username == "" || body.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ip := clientip.Resolve(r.RemoteAddr, r.Header)
	key := clientip.BanKey(ip)

	if h.guard.IsBanned(key) {
		remaining := int(h.guard.BanRemaining(key).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		h.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeBanned).Inc()

		w.Header().Set("Retry-After", strconv.Itoa(remaining))
		httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               fmt.Sprintf("too many failed login attempts, try again in %d seconds", remaining),
			"retry_after_seconds": remaining,
		})
		return
	}

	if !h.accounts.Verify(r.Context(), body.Username, body.Password) {
		h.guard.RecordFailure(key)
		h.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeFailure).Inc()
		h.logger.Warn().Stringer("ip", ip).Str("username", body.Username).Msg("failed login attempt")

		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.guard.RecordSuccess(key)

	token, expiresAt, err := h.tokens.Issue(body.Username)
	if err != nil {
		sentry.CaptureException(err)
		h.logger.Error().Err(err).Msg("issue token")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	h.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	h.logger.Info().Stringer("ip", ip).Str("username", body.Username).Msg("login successful")

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Unix(),
		"username":   body.Username,
		"message":    "login successful",
	})
}

// Logout exists for the frontend's sake: tokens are stateless and cannot be
// revoked server-side, so logging out is the client discarding its token.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Check reports the identity behind an already-validated token.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"username":   identity.Username,
		"expires_at": identity.ExpiresAt.Unix(),
	})
}

// Refresh trades a still-valid token for a fresh one with a full TTL.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	token, expiresAt, err := h.tokens.Issue(identity.Username)
	if err != nil {
		sentry.CaptureException(err)
		h.logger.Error().Err(err).Msg("refresh token")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Unix(),
		"message":    "token refreshed",
	})
}

// UpdateProfile rewrites the admin account and persists it.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	if !usernameRegex.MatchString(body.Username) {
		httpx.WriteError(w, http.StatusBadRequest, "username format is invalid")
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		httpx.WriteError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	if err := h.accounts.Update(r.Context(), body.Username, body.Password); err != nil {
		sentry.CaptureException(err)
		h.logger.Error().Err(err).Msg("update profile")
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	h.logger.Info().Str("username", body.Username).Msg("admin profile updated")
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, httpx.MaxJSONBodyBytes)

	var body credentialsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return credentialsRequest{}, false
	}

	body.Username = strings.TrimSpace(body.Username)
	return body, true
}
