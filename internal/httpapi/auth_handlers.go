package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tasklane.app/internal/audit"
	"tasklane.app/internal/auth"
	"tasklane.app/internal/obs"
	"tasklane.app/internal/tenant"
)

type registerRequest struct {
	OrganizationName string `json:"organization_name"`
	Subdomain        string `json:"subdomain"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	OrgID string `json:"org_id,omitempty"`
}

type oauthLoginRequest struct {
	IDToken string `json:"id_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	OTPRequired bool   `json:"otp_required"`
	Message     string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (a *API) tokenResponse(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(a.auth.Tokens().AccessTTL().Seconds()),
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.auth.Register(r.Context(), auth.RegisterParams{
		OrgName:   req.OrganizationName,
		Subdomain: req.Subdomain,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: "))
			return
		}
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusBadRequest, "all fields are required")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "registration failed")
		return
	}

	obs.TokensIssued.WithLabelValues("register").Inc()
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"subdomain": strings.ToLower(strings.TrimSpace(req.Subdomain)),
	})
	writeJSON(w, http.StatusOK, a.tokenResponse(pair))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := a.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		obs.LoginAttempts.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, loginResponse{
			OTPRequired: true,
			Message:     "OTP sent to your email",
		})
	case errors.Is(err, auth.ErrRateLimited):
		obs.LoginAttempts.WithLabelValues("rate_limited").Inc()
		_ = audit.LogEvent(r.Context(), "auth.login.rate_limited", nil)
		w.Header().Set("Retry-After", "300")
		writeError(w, r, http.StatusTooManyRequests, "too many login attempts")
	case errors.Is(err, auth.ErrInvalidCredentials):
		obs.LoginAttempts.WithLabelValues("invalid").Inc()
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, r, http.StatusInternalServerError, "login failed")
	}
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.auth.VerifyOTP(r.Context(), req.Email, req.Code, req.OrgID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid or expired code")
		case errors.Is(err, auth.ErrMembershipMissing):
			writeError(w, r, http.StatusBadRequest, "no organization membership")
		default:
			writeError(w, r, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	obs.TokensIssued.WithLabelValues("otp").Inc()
	_ = audit.LogEvent(r.Context(), "auth.otp.verified", nil)
	writeJSON(w, http.StatusOK, a.tokenResponse(pair))
}

func (a *API) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req oauthLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	org, _ := tenant.OrgFromContext(r.Context())
	pair, err := a.auth.OAuthLogin(r.Context(), req.IDToken, org)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTenantUnresolved):
			writeError(w, r, http.StatusBadRequest, "organization context required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid identity token")
		default:
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	obs.TokensIssued.WithLabelValues("oauth").Inc()
	_ = audit.LogEvent(r.Context(), "auth.oauth.login", map[string]any{
		"org_id": org.ID,
	})
	writeJSON(w, http.StatusOK, a.tokenResponse(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			// Reuse of a rotated token is the token-theft signal. A token
			// that merely expired is not.
			obs.RefreshReuse.Inc()
			_ = audit.LogEvent(r.Context(), "auth.refresh.reuse_detected", nil)
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrMembershipMissing):
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	obs.TokensIssued.WithLabelValues("refresh").Inc()
	writeJSON(w, http.StatusOK, a.tokenResponse(pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}
