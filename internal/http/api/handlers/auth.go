package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/cache"
	"github.com/miky-rola/signals-backend/internal/config"
	"github.com/miky-rola/signals-backend/internal/mail"
	"github.com/miky-rola/signals-backend/internal/models"
	"github.com/miky-rola/signals-backend/internal/otp"
	"github.com/miky-rola/signals-backend/internal/security"
	"github.com/miky-rola/signals-backend/internal/validate"
)

// Code lifetimes for the two OTP flows.
const (
	verifyCodeTTL = 15 * time.Minute
	resetCodeTTL  = otp.DefaultTTL
)

// AuthHandler manages signup, login, and the password/verification flows.
type AuthHandler struct {
	db     *gorm.DB
	store  cache.Store
	mailer mail.Sender
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, store cache.Store, mailer mail.Sender, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, store: store, mailer: mailer, jwtCfg: jwtCfg}
}

// signupRequest defines the request body for signup.
type signupRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// Signup registers an unverified account and emails a verification code.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body signupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	email := strings.TrimSpace(body.Email)
	username := strings.TrimSpace(body.Username)

	if errEmail := validate.Email(email); errEmail != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": errEmail.Error()})
		return
	}
	if errUsername := validate.Username(username); errUsername != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": errUsername.Error()})
		return
	}
	if errPassword := validate.Password(body.Password); errPassword != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": errPassword.Error()})
		return
	}
	if body.Password != body.Password2 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Passwords do not match"})
		return
	}

	ctx := c.Request.Context()

	var verified int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND is_verified = ?", email, true).
		Count(&verified).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	if verified > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "User with this email already exists"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "hash password failed"})
		return
	}

	user := models.User{
		Email:    email,
		Username: username,
		Password: hash,
		IsActive: true,
	}
	if errCreate := h.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user with this email or username already exists"})
		return
	}

	code, token, errOTP := otp.Generate(user.ID, verifyCodeTTL)
	if errOTP != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "generate code failed"})
		return
	}
	if errSend := h.mailer.SendCode(ctx, "Verify your account", code, user.Email, user.Username, verifyCodeTTL); errSend != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Error sending email: " + errSend.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"message":  "Verification code sent",
		"token":    token,
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials and issues a refresh/access token pair.
// The checks run in a fixed order and each failure returns 401 with its own
// message: account exists, password matches, account active, email verified.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	email := strings.TrimSpace(body.Email)

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "No account found with this email address."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	if !security.VerifyPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect password. Please try again."})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "User account is disabled."})
		return
	}
	if !user.IsVerified {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "User is not verified"})
		return
	}

	pair, errIssue := security.IssueTokenPair(h.jwtCfg, user.ID, user.Email)
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "issue tokens failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// refreshRequest defines the request body carrying a refresh token.
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body refreshRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	claims, errParse := security.ParseToken(h.jwtCfg.Secret, body.Refresh, security.TokenTypeRefresh)
	if errParse != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
		return
	}
	if h.isRevoked(c, claims.ID) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
		return
	}

	access, errAccess := security.AccessFromRefreshClaims(h.jwtCfg, *claims)
	if errAccess != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}

// Logout revokes a refresh token by denylisting its JTI until expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	var body refreshRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	claims, errParse := security.ParseToken(h.jwtCfg.Secret, body.Refresh, security.TokenTypeRefresh)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Token is invalid or expired"})
		return
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if errSet := h.store.Set(c.Request.Context(), cache.DenylistKey(claims.ID), []byte("1"), ttl); errSet != nil {
		log.WithError(errSet).Warn("denylist refresh token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// verifyEmailRequest defines the request body for email verification.
type verifyEmailRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// VerifyEmail completes signup by checking the emailed code and marking the
// account verified.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body verifyEmailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	user, payload, ok := h.resolveTokenUser(c, body.Token)
	if !ok {
		return
	}
	if !otp.Verify(body.Code, payload.Secret, verifyCodeTTL) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"is_verified": true, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// forgotPasswordRequest defines the request body for forgot-password.
type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword emails a reset code and returns the opaque token that
// carries the reset state. No server-side reset record is created.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var body forgotPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email must be provided"})
		return
	}

	ctx := c.Request.Context()

	var user models.User
	errFind := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "User with this email does not exist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}

	code, token, errOTP := otp.Generate(user.ID, resetCodeTTL)
	if errOTP != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "generate code failed"})
		return
	}
	if errSend := h.mailer.SendCode(ctx, "Your Password Reset", code, user.Email, user.Username, resetCodeTTL); errSend != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Error sending email: " + errSend.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "verification code sent successfully",
		"token":   token,
	})
}

// resetPasswordRequest defines the request body for reset-password.
type resetPasswordRequest struct {
	Token    string `json:"token"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// ResetPassword sets a new password after verifying the emailed code against
// the secret recovered from the token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body resetPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	if errPassword := validate.Password(body.Password); errPassword != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": errPassword.Error()})
		return
	}

	user, payload, ok := h.resolveTokenUser(c, body.Token)
	if !ok {
		return
	}
	if !otp.Verify(body.Code, payload.Secret, resetCodeTTL) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid code"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "hash password failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// changePasswordRequest defines the request body for change-password.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword updates the authenticated user's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	if !security.VerifyPassword(user.Password, body.OldPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Incorrect password"})
		return
	}
	if errPassword := validate.Password(body.NewPassword); errPassword != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": errPassword.Error()})
		return
	}

	hash, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "hash password failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// resolveTokenUser decodes an OTP token and loads its user. On failure it
// writes the 400 response and returns ok=false.
func (h *AuthHandler) resolveTokenUser(c *gin.Context, token string) (models.User, *otp.TokenPayload, bool) {
	payload := otp.DecodeToken(token)
	if payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid token"})
		return models.User{}, nil, false
	}
	userID, errParse := strconv.ParseUint(payload.UserID, 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid token"})
		return models.User{}, nil, false
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "User does not exist"})
		return models.User{}, nil, false
	}
	return user, payload, true
}

// isRevoked reports whether the refresh JTI is denylisted. Cache errors fail
// open so an unreachable cache cannot lock every session out.
func (h *AuthHandler) isRevoked(c *gin.Context, jti string) bool {
	_, errGet := h.store.Get(c.Request.Context(), cache.DenylistKey(jti))
	if errGet == nil {
		return true
	}
	if !errors.Is(errGet, cache.ErrMiss) {
		log.WithError(errGet).Warn("denylist lookup failed")
	}
	return false
}
