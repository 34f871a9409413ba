package middleware

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"sshprint/internal/db"
)

const (
	sessionCookie = "sshprint_auth"
	sessionTTL    = 24 * time.Hour
	tokenIssuer   = "sshprint"
	tokenSubject  = "admin"

	settingsKeyPassword  = "admin_password"
	settingsKeyJWTSecret = "jwt_secret"
)

// Auth guards the API behind a single admin password. The bcrypt hash
// and the HMAC signing secret both live in the settings table; a
// session is a signed token carried in a cookie, or a bearer header
// for scripted callers.
type Auth struct {
	secret []byte
}

type authError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

type setupRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

func NewAuth() (*Auth, error) {
	secret, err := loadOrCreateSecret()
	if err != nil {
		return nil, err
	}
	return &Auth{secret: secret}, nil
}

// loadOrCreateSecret reads the signing secret from the settings table,
// minting one on first start. Deleting the row rotates the secret and
// invalidates every outstanding session.
func loadOrCreateSecret() ([]byte, error) {
	ctx := context.Background()
	setting, err := db.Settings.GetSetting(ctx, settingsKeyJWTSecret)
	if errors.Is(err, sql.ErrNoRows) {
		secret := generateRandomKey()
		if err := db.Settings.SetSetting(ctx, settingsKeyJWTSecret, hex.EncodeToString(secret), false); err != nil {
			return nil, err
		}
		return secret, nil
	}
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(setting.Value)
}

func storedPasswordHash() (string, bool) {
	setting, err := db.Settings.GetSetting(context.Background(), settingsKeyPassword)
	if err != nil {
		return "", false
	}
	return setting.Value, true
}

func (a *Auth) signSession(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) verifySession(token string) error {
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
	)
	return err
}

func (a *Auth) startSession(c *gin.Context) error {
	token, err := a.signSession(time.Now())
	if err != nil {
		return err
	}
	c.SetCookie(sessionCookie, token, int(sessionTTL.Seconds()), "/", "", true, true)
	return nil
}

func endSession(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", true, true)
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Setup sets the admin password on a fresh install. Allowed exactly
// once; afterwards the password changes through ChangePassword.
func (a *Auth) Setup(c *gin.Context) {
	if _, ok := storedPasswordHash(); ok {
		c.JSON(http.StatusConflict, authError{
			Error:   "already_configured",
			Message: "Admin password is already set",
		})
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authError{
			Error:   "validation_error",
			Message: "Password must be at least 8 characters",
		})
		return
	}

	if err := a.savePassword(c, req.Password); err != nil {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"authenticated": true})
}

func (a *Auth) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authError{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	hash, ok := storedPasswordHash()
	if !ok {
		c.JSON(http.StatusConflict, authError{
			Error:   "setup_required",
			Message: "Set an admin password first",
		})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, authError{
			Error:   "bad_credentials",
			Message: "Wrong password",
		})
		return
	}

	if err := a.startSession(c); err != nil {
		c.JSON(http.StatusInternalServerError, authError{
			Error:   "token_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

func (a *Auth) Logout(c *gin.Context) {
	endSession(c)
	c.Status(http.StatusNoContent)
}

func (a *Auth) Status(c *gin.Context) {
	_, configured := storedPasswordHash()
	token := sessionToken(c)
	c.JSON(http.StatusOK, gin.H{
		"authenticated":  token != "" && a.verifySession(token) == nil,
		"setup_required": !configured,
	})
}

func (a *Auth) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authError{
			Error:   "validation_error",
			Message: "New password must be at least 8 characters",
		})
		return
	}

	hash, ok := storedPasswordHash()
	if !ok {
		c.JSON(http.StatusConflict, authError{
			Error:   "setup_required",
			Message: "Set an admin password first",
		})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)) != nil {
		c.JSON(http.StatusUnauthorized, authError{
			Error:   "bad_credentials",
			Message: "Current password is wrong",
		})
		return
	}

	if err := a.savePassword(c, req.NewPassword); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// savePassword hashes and stores the password, then starts a session
// so the caller is not bounced back to login. Writes its own error
// response on failure.
func (a *Auth) savePassword(c *gin.Context, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, authError{Error: "hash_error", Message: err.Error()})
		return err
	}
	if err := db.Settings.SetSetting(c.Request.Context(), settingsKeyPassword, string(hash), false); err != nil {
		c.JSON(http.StatusInternalServerError, authError{Error: "storage_error", Message: err.Error()})
		return err
	}
	if err := a.startSession(c); err != nil {
		c.JSON(http.StatusInternalServerError, authError{Error: "token_error", Message: err.Error()})
		return err
	}
	return nil
}

// RequireAuth rejects requests that do not carry a valid session.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" || a.verifySession(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, authError{
				Error:   "unauthorized",
				Message: "Log in first",
			})
			return
		}
		c.Next()
	}
}
