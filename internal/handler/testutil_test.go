package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"savepass/internal/config"
	"savepass/internal/database"
	"savepass/internal/passkey"
	"savepass/internal/router"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// testIterations keeps the hashing pipeline at its minimum accepted cost so
// the suite stays fast.
const testIterations = 100_000

// fakeProvider is a test double for the external passwordless provider.
type fakeProvider struct {
	signIn      passkey.VerifiedSignIn
	signInErr   error
	credentials []passkey.Credential
	listErr     error
	deleteErr   error
	deleted     []string
}

func (f *fakeProvider) VerifySignIn(ctx context.Context, verifyToken string) (passkey.VerifiedSignIn, error) {
	if f.signInErr != nil {
		return passkey.VerifiedSignIn{}, f.signInErr
	}
	return f.signIn, nil
}

func (f *fakeProvider) ListCredentials(ctx context.Context, userID string) ([]passkey.Credential, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.credentials, nil
}

func (f *fakeProvider) DeleteCredential(ctx context.Context, credentialID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, credentialID)
	return nil
}

func setupServer(t *testing.T, provider passkey.Verifier) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := database.Init(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT: config.JWTConfig{
			Secret:              "test-secret",
			Issuer:              "savepass-test",
			SessionExpireHours:  1,
			ReAuthExpireMinutes: 5,
		},
		Security: config.SecurityConfig{
			DefaultHashIterations: 600_000,
			EncryptionKey:         "test-encryption-key",
		},
		TOTP: config.TOTPConfig{Issuer: "SavePass"},
	}

	return router.Setup(cfg, db, provider), db
}

// envelope mirrors the standard response shape.
type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func signup(t *testing.T, r *gin.Engine, email, password string) string {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/signup", "", map[string]interface{}{
		"email":          email,
		"password":       password,
		"hashIterations": testIterations,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: want 201, got %d (%s)", w.Code, w.Body.String())
	}

	tok, _ := env.Data["token"].(string)
	if tok == "" {
		t.Fatal("signup: missing token")
	}
	return tok
}

func login(t *testing.T, r *gin.Engine, body map[string]interface{}) (int, envelope) {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/login", "", body)
	return w.Code, env
}
