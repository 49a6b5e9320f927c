package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"petshelter/internal/pkg/response"
	"petshelter/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

const (
	RefreshCookieName = "refresh_token"
	AccessCookieName  = "access_token"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service        *Service
	cookieSecure   bool
	cookieSameSite string
	cookiePath     string
}

// NewHandler creates a new auth handler with injected service
func NewHandler(service *Service, cookieSecure bool, cookieSameSite, cookiePath string) *Handler {
	return &Handler{
		service:        service,
		cookieSecure:   cookieSecure,
		cookieSameSite: cookieSameSite,
		cookiePath:     cookiePath,
	}
}

func (h *Handler) RegisterPublicRoutes(api *gin.RouterGroup) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/auth/me", h.GetMe)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/accounts/:id/deactivate", h.DeactivateAccount)
	admin.POST("/tokens/revoke", h.RevokeAccessToken)
}

// Register creates a new account.
// @Summary		Register account
// @Description	Creates an active account with the default role. No session is started.
// @Tags		Auth
// @Param		request	body	RegisterRequest	true	"email, password, first_name, last_name, phone"
// @Success		201	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{} "validation error or weak password"
// @Failure		409	{object}	map[string]interface{} "email already registered"
// @Router		/auth/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.Normalize()
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	account, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateAccount):
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
		case errors.Is(err, ErrWeakPassword):
			response.Error(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to register account")
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"account": account})
}

// Login authenticates by email and password.
// @Summary		Login
// @Description	Returns an access token and sets the refresh_token cookie. Any previous session of the account ends.
// @Tags		Auth
// @Param		request	body	LoginRequest	true	"email, password"
// @Success		200	{object}	TokenResponse
// @Failure		401	{object}	map[string]interface{} "invalid credentials"
// @Failure		403	{object}	map[string]interface{} "account deactivated"
// @Router		/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
		case errors.Is(err, ErrAccountDeactivated):
			response.Error(c, http.StatusForbidden, "ACCOUNT_DEACTIVATED", "Account is deactivated")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to login")
		}
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	c.Header("Authorization", "Bearer "+result.AccessToken)
	response.Success(c, http.StatusOK, TokenResponse{
		AccessToken:      result.AccessToken,
		TokenType:        "Bearer",
		ExpiresInSeconds: result.AccessTTLSeconds,
	})
}

// Refresh rotates the refresh token stored in the cookie.
// @Summary		Refresh session
// @Tags		Auth
// @Success		200	{object}	TokenResponse
// @Failure		401	{object}	map[string]interface{} "missing, unknown, revoked or expired refresh token"
// @Router		/auth/refresh [POST]
func (h *Handler) Refresh(c *gin.Context) {
	refreshRaw, err := c.Cookie(RefreshCookieName)
	if err != nil || strings.TrimSpace(refreshRaw) == "" {
		response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is missing")
		return
	}

	result, err := h.service.Rotate(c.Request.Context(), refreshRaw)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownSession):
			response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid")
		case errors.Is(err, ErrSessionInvalid):
			response.Error(c, http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token is expired or revoked")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh session")
		}
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Success(c, http.StatusOK, TokenResponse{
		AccessToken:      result.AccessToken,
		TokenType:        "Bearer",
		ExpiresInSeconds: result.AccessTTLSeconds,
	})
}

// Logout ends the current session.
// @Summary		Logout
// @Description	Revokes the refresh cookie's session and denies the bearer access token. Always succeeds.
// @Tags		Auth
// @Success		204	"No Content"
// @Router		/auth/logout [POST]
func (h *Handler) Logout(c *gin.Context) {
	refreshRaw, _ := c.Cookie(RefreshCookieName)
	accessToken, _ := AccessTokenFromRequest(c)
	h.service.Logout(c.Request.Context(), accessToken, refreshRaw)

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

// GetMe returns the authenticated account.
// @Summary		Current account
// @Tags		Auth
// @Security	BearerAuth
// @Success		200	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/auth/me [GET]
func (h *Handler) GetMe(c *gin.Context) {
	accountID := c.GetInt64("user_id")
	if accountID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	account, err := h.service.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load account")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": account})
}

// DeactivateAccount blocks an account and ends its refresh sessions.
// @Summary		Deactivate account
// @Tags		Admin
// @Security	BearerAuth
// @Param		id	path	int	true	"account id"
// @Success		204	"No Content"
// @Router		/admin/accounts/{id}/deactivate [POST]
func (h *Handler) DeactivateAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid account ID")
		return
	}

	if err := h.service.DeactivateAccount(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "DEACTIVATE_FAILED", "Failed to deactivate account")
		return
	}

	c.Status(http.StatusNoContent)
}

type revokeTokenRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// RevokeAccessToken puts an access token on the denylist.
// @Summary		Revoke access token
// @Tags		Admin
// @Security	BearerAuth
// @Success		204	"No Content"
// @Failure		400	{object}	map[string]interface{} "token missing or does not verify"
// @Router		/admin/tokens/revoke [POST]
func (h *Handler) RevokeAccessToken(c *gin.Context) {
	var req revokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || validator.Validate(req) != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "access_token is required")
		return
	}

	if err := h.service.RevokeAccess(req.AccessToken); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_TOKEN", "Token is not a valid access token")
		return
	}
	c.Status(http.StatusNoContent)
}

// ErrMalformedAuthHeader means an Authorization header is present but is not
// "Bearer <token>". The scheme is matched case-insensitively.
var ErrMalformedAuthHeader = errors.New("authorization header must be 'Bearer <token>'")

// AccessTokenFromRequest reads the bearer token, falling back to the access_token cookie
// when no Authorization header is sent. It returns "" and a nil error when neither is present.
func AccessTokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", ErrMalformedAuthHeader
		}
		return token, nil
	}
	if v, err := c.Cookie(AccessCookieName); err == nil {
		return strings.TrimSpace(v), nil
	}
	return "", nil
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(parseSameSite(h.cookieSameSite))
	c.SetCookie(RefreshCookieName, value, int(h.service.RefreshTTL().Seconds()), h.cookiePath, "", h.cookieSecure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(parseSameSite(h.cookieSameSite))
	c.SetCookie(RefreshCookieName, "", -1, h.cookiePath, "", h.cookieSecure, true)
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteStrictMode
	}
}
