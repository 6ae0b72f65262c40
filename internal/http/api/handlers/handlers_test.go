package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/cache"
	"github.com/miky-rola/signals-backend/internal/config"
	"github.com/miky-rola/signals-backend/internal/db"
	"github.com/miky-rola/signals-backend/internal/models"
	"github.com/miky-rola/signals-backend/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testJWTConfig = config.JWTConfig{
	Secret:        "handler-test-secret",
	AccessExpiry:  30 * time.Minute,
	RefreshExpiry: 720 * time.Hour,
}

// captureMailer records outbound codes instead of dialing a relay.
type captureMailer struct {
	subject   string
	code      string
	recipient string
	ttl       time.Duration
	sent      int
}

func (m *captureMailer) SendCode(_ context.Context, subject, code, recipient, _ string, ttl time.Duration) error {
	m.subject = subject
	m.code = code
	m.recipient = recipient
	m.ttl = ttl
	m.sent++
	return nil
}

// testEnv bundles the in-memory database, cache, mailer, and router used by
// handler tests.
type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	store  *cache.MemoryStore
	mailer *captureMailer
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	store := cache.NewMemoryStore()
	mailer := &captureMailer{}

	auth := NewAuthHandler(conn, store, mailer, testJWTConfig)
	users := NewUserHandler(conn)
	profiles := NewProfileHandler(conn)
	marketData := NewMarketDataHandler(conn)
	signals := NewSignalHandler(conn, store)
	interactions := NewInteractionHandler(conn)

	engine := gin.New()

	public := engine.Group("/api/auth")
	public.POST("/signup", auth.Signup)
	public.POST("/verify-email", auth.VerifyEmail)
	public.POST("/login", auth.Login)
	public.POST("/refresh-token", auth.Refresh)
	public.POST("/logout", auth.Logout)
	public.POST("/forget-password", auth.ForgotPassword)
	public.POST("/reset-password", auth.ResetPassword)

	private := engine.Group("/api", testAuth(conn))
	private.POST("/auth/change-password", auth.ChangePassword)
	private.GET("/users", users.List)
	private.GET("/users/me", users.Me)
	private.GET("/users/:id", users.Get)
	private.PATCH("/users/:id", users.Update)
	private.DELETE("/users/:id", users.Delete)
	private.POST("/profiles", profiles.Create)
	private.GET("/profiles", profiles.List)
	private.GET("/profiles/:id", profiles.Get)
	private.PATCH("/profiles/:id", profiles.Update)
	private.DELETE("/profiles/:id", profiles.Delete)
	private.POST("/marketdata", marketData.Create)
	private.GET("/marketdata", marketData.List)
	private.GET("/marketdata/:id", marketData.Get)
	private.PATCH("/marketdata/:id", marketData.Update)
	private.DELETE("/marketdata/:id", marketData.Delete)
	private.POST("/signals", signals.Create)
	private.GET("/signals", signals.List)
	private.GET("/signals/:id", signals.Get)
	private.PATCH("/signals/:id", signals.Update)
	private.DELETE("/signals/:id", signals.Delete)
	private.GET("/signals/:id/performance", signals.Performance)
	private.DELETE("/cache/signals", signals.FlushCache)
	private.POST("/userinteractions", interactions.Create)
	private.GET("/userinteractions", interactions.List)
	private.GET("/userinteractions/user/:id", interactions.ListByUser)
	private.GET("/userinteractions/:id", interactions.Get)
	private.PATCH("/userinteractions/:id", interactions.Update)
	private.DELETE("/userinteractions/:id", interactions.Delete)

	return &testEnv{t: t, db: conn, store: store, mailer: mailer, engine: engine}
}

// testAuth resolves the acting user from the X-User header so tests can
// exercise ownership rules without minting tokens per request.
func testAuth(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User")
		if raw == "" {
			c.Next()
			return
		}
		id, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.Next()
			return
		}
		var user models.User
		if errFind := conn.First(&user, id).Error; errFind == nil {
			SetCurrentUser(c, user)
		}
		c.Next()
	}
}

// do performs a request against the router. userID 0 means unauthenticated.
func (e *testEnv) do(method, path string, body any, userID uint64) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			e.t.Fatalf("marshal request body: %v", errMarshal)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Host = "example.com"
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User", strconv.FormatUint(userID, 10))
	}

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a response body into out.
func (e *testEnv) decode(rec *httptest.ResponseRecorder, out any) {
	e.t.Helper()
	if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), out); errUnmarshal != nil {
		e.t.Fatalf("decode response %q: %v", rec.Body.String(), errUnmarshal)
	}
}

// createUser inserts a user with a bcrypt-hashed password.
func (e *testEnv) createUser(email, username, password string, verified, active, staff bool) models.User {
	e.t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		e.t.Fatalf("hash password: %v", errHash)
	}
	user := models.User{
		Email:      email,
		Username:   username,
		Password:   hash,
		IsActive:   active,
		IsVerified: verified,
		IsStaff:    staff,
	}
	if errCreate := e.db.Create(&user).Error; errCreate != nil {
		e.t.Fatalf("create user: %v", errCreate)
	}
	return user
}

// createSignal inserts a signal row.
func (e *testEnv) createSignal(ticker string, confidence int) models.Signal {
	e.t.Helper()
	signal := models.Signal{
		Ticker:         ticker,
		Strategy:       models.StrategyVRP,
		VRPZScore:      2.1,
		VRPRatio:       1.4,
		ExpectedReturn: 0.05,
		Confidence:     confidence,
		InLab:          true,
		ExpiresAt:      time.Now().Add(48 * time.Hour).UTC(),
	}
	if errCreate := e.db.Create(&signal).Error; errCreate != nil {
		e.t.Fatalf("create signal: %v", errCreate)
	}
	return signal
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, want, rec.Body.String())
	}
}

func requireDetail(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body map[string]any
	if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), &body); errUnmarshal != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errUnmarshal)
	}
	if got, _ := body["detail"].(string); got != want {
		t.Fatalf("detail = %q, want %q", body["detail"], want)
	}
}
