package auth

import (
	"errors"
	"net/http"

	"usersystem/internal/middleware"
	"usersystem/internal/pkg/response"
	"usersystem/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

// Handler manages all HTTP interactions for accounts and sessions.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	v1.POST("/users", h.Register)

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/verify", h.VerifyAccount)
		authGroup.POST("/verify/resend", h.ResendVerification)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/token/refresh", h.Refresh)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.PUT("/forgot-password/reset", h.ResetForgottenPassword)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/auth/logout", h.Logout)

	userGroup := protected.Group("/users")
	{
		userGroup.GET("/me", h.GetMe)
		userGroup.PUT("/password", h.ResetPassword)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": "Account has been created.",
		"user":    NewUserResponse(user),
	})
}

func (h *Handler) VerifyAccount(c *gin.Context) {
	var req VerifyAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.VerifyAccount(c.Request.Context(), req.Email, req.Token); err != nil {
		h.respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Account has been verified.")
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req ResendVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Verification email has been sent.")
}

// Login accepts an OAuth2-style password form and returns a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, newTokenPairResponse(pair))
}

// Refresh exchanges the refresh token from the Refresh-Token header for
// a new pair.
func (h *Handler) Refresh(c *gin.Context) {
	refreshToken := c.GetHeader("Refresh-Token")
	if refreshToken == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing Refresh-Token header")
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, newTokenPairResponse(pair))
}

func (h *Handler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorised")
		return
	}

	refreshToken := c.GetHeader("Refresh-Token")
	if refreshToken == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing Refresh-Token header")
		return
	}

	if err := h.service.Logout(c.Request.Context(), user, refreshToken); err != nil {
		h.respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "You have been logged out.")
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "A reset password email has been sent.")
}

func (h *Handler) ResetForgottenPassword(c *gin.Context) {
	var req ForgotPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if fieldErrs := validator.Validate(req); fieldErrs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", fieldErrs)
		return
	}

	err := h.service.ResetForgottenPassword(c.Request.Context(), req.Email, req.Token, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password has been reset.")
}

func (h *Handler) ResetPassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorised")
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), user, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password has been reset.")
}

func (h *Handler) GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorised")
		return
	}
	response.Success(c, http.StatusOK, NewUserResponse(user))
}

// respondError maps service failures onto the wire taxonomy. Anything
// unmatched is a server fault.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "Email is already exists.")
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "Incorrect email or password.")
	case errors.Is(err, ErrAccountNotActive):
		response.Error(c, http.StatusBadRequest, "ACCOUNT_NOT_ACTIVE", "Your account is not active.")
	case errors.Is(err, ErrAccountNotVerified):
		response.Error(c, http.StatusBadRequest, "ACCOUNT_NOT_VERIFIED", "Your account is not verified.")
	case errors.Is(err, ErrAlreadyActive):
		response.Error(c, http.StatusBadRequest, "ALREADY_ACTIVE", "Your account is already active.")
	case errors.Is(err, ErrEmailNotFound):
		response.Error(c, http.StatusBadRequest, "EMAIL_NOT_FOUND", "Email is not exists.")
	case errors.Is(err, ErrInvalidLink):
		response.Error(c, http.StatusBadRequest, "INVALID_LINK", "This link is not valid.")
	case errors.Is(err, ErrTokenExpired):
		response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired.")
	case errors.Is(err, ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorised.")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
