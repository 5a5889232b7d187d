package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/timber-social/timber-backend/internal/config"
	"github.com/timber-social/timber-backend/internal/di"
	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testEnv struct {
	baseURL string
	client  *http.Client
	db      *gorm.DB
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                     config.EnvDevelopment,
		DatabaseDriver:             "sqlite",
		DatabaseURL:                filepath.Join(t.TempDir(), "itest.db"),
		JWTIssuer:                  "timber-itest",
		JWTAudience:                "timber-web",
		JWTAccessSecret:            "abcdefghijklmnopqrstuvwxyz123456",
		JWTRefreshSecret:           "abcdefghijklmnopqrstuvwxyz654321",
		JWTAccessTTL:               10 * time.Minute,
		JWTRefreshTTL:              720 * time.Hour,
		SessionTTL:                 720 * time.Hour,
		RefreshTokenPepper:         "itest-pepper",
		VerificationCodeTTL:        15 * time.Minute,
		ResetCodeTTL:               10 * time.Minute,
		BcryptCost:                 4,
		MailWorkers:                1,
		MailQueueSize:              16,
		CORSAllowedOrigins:         []string{"http://localhost:3000"},
		AuthRateLimitRPM:           1000,
		PasswordForgotRateLimitRPM: 1000,
		APIRateLimitRPM:            1000,
		CodeEmailRateLimit:         1000,
		CodeEmailRateWindow:        time.Minute,
		ShutdownTimeout:            5 * time.Second,
		OTELServiceName:            "timber-itest",
	}
}

// newAuthTestServer boots the full dependency graph on a temp sqlite file and
// an in-process redis.
func newAuthTestServer(t *testing.T) (*testEnv, func()) {
	t.Helper()
	return newAuthTestServerWithConfig(t, nil)
}

func newAuthTestServerWithConfig(t *testing.T, mutate func(*config.Config)) (*testEnv, func()) {
	t.Helper()
	cfg := newTestConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	cfg.RedisAddr = miniredis.RunT(t).Addr()

	runtime := &observability.Runtime{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	application, cleanup, err := di.InitializeApp(context.Background(), cfg, runtime)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	srv := httptest.NewServer(application.Server.Handler)

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		t.Fatalf("open inspection db: %v", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	env := &testEnv{baseURL: srv.URL, client: &http.Client{Jar: jar, Timeout: 10 * time.Second}, db: db}
	return env, func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		cleanup()
	}
}

func doJSON(t *testing.T, client *http.Client, method, target string, body any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope for %s %s: %v", method, target, err)
	}
	return resp, env
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// pendingCode reads the one-time code straight from storage, standing in for
// the user's inbox.
func (e *testEnv) pendingCode(t *testing.T, email string) string {
	t.Helper()
	var account domain.Account
	if err := e.db.Where("email = ?", email).First(&account).Error; err != nil {
		t.Fatalf("load account %s: %v", email, err)
	}
	if account.VerificationCode == nil {
		t.Fatalf("account %s has no pending code", email)
	}
	return *account.VerificationCode
}

func (e *testEnv) promoteToAdmin(t *testing.T, email string) {
	t.Helper()
	err := e.db.Model(&domain.Account{}).Where("email = ?", email).
		Update("roles", domain.RoleSet{domain.RoleUser, domain.RoleAdmin}).Error
	if err != nil {
		t.Fatalf("promote %s: %v", email, err)
	}
}

func (e *testEnv) registerVerified(t *testing.T, name, username, email, password string) {
	t.Helper()
	resp, env := doJSON(t, e.client, http.MethodPost, e.baseURL+"/api/v1/auth/register", map[string]string{
		"name": name, "username": username, "email": email, "password": password,
	}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register %s failed: status=%d", email, resp.StatusCode)
	}
	resp, _ = doJSON(t, e.client, http.MethodPost, e.baseURL+"/api/v1/auth/verify", map[string]string{
		"email": email, "verificationCode": e.pendingCode(t, email),
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify %s failed: status=%d", email, resp.StatusCode)
	}
}

func freshClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
