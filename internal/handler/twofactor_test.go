package handler_test

import (
	"net/http"
	"testing"
	"time"

	"savepass/internal/models"
	"savepass/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func currentCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

// enroll provisions a secret and completes enrollment with a current code,
// using inline master-password re-entry to pass the step-up gate.
func enroll(t *testing.T, eng *gin.Engine, tok, password string) string {
	t.Helper()

	w, env := doJSON(t, eng, http.MethodPost, "/api/v1/two-factor-auth/get-authenticator", tok, map[string]interface{}{
		"masterPassword": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("get-authenticator: want 200, got %d (%s)", w.Code, w.Body.String())
	}
	if enabled, _ := env.Data["enabled"].(bool); enabled {
		t.Fatal("fresh account must not have an enabled authenticator")
	}
	secret, _ := env.Data["secret"].(string)
	if secret == "" {
		t.Fatal("missing provisional secret")
	}

	w, _ = doJSON(t, eng, http.MethodPatch, "/api/v1/two-factor-auth/authenticator", tok, map[string]interface{}{
		"masterPassword": password,
		"secret":         secret,
		"token":          currentCode(t, secret, time.Now()),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set authenticator: want 200, got %d (%s)", w.Code, w.Body.String())
	}

	return secret
}

func TestTwoFactorEnrollmentAndLogin(t *testing.T) {
	eng, db := setupServer(t, &fakeProvider{})

	tok := signup(t, eng, "a@x.com", "Secret123")

	// status starts disabled
	_, env := doJSON(t, eng, http.MethodGet, "/api/v1/two-factor-auth", tok, nil)
	if enabled, _ := env.Data["authenticatorAppEnabled"].(bool); enabled {
		t.Fatal("authenticator must start disabled")
	}

	secret := enroll(t, eng, tok, "Secret123")

	// status now enabled, and the stored secret is encrypted at rest
	_, env = doJSON(t, eng, http.MethodGet, "/api/v1/two-factor-auth", tok, nil)
	if enabled, _ := env.Data["authenticatorAppEnabled"].(bool); !enabled {
		t.Fatal("authenticator should be enabled after enrollment")
	}

	var stored struct{ AuthenticatorSecret string }
	if err := db.Model(&models.User{}).Select("authenticator_secret").
		Where("email = ?", "a@x.com").First(&stored).Error; err != nil {
		t.Fatalf("load secret: %v", err)
	}
	if stored.AuthenticatorSecret == "" || stored.AuthenticatorSecret == secret {
		t.Error("secret must be stored encrypted, not in the clear")
	}

	// login without a code is a distinct twoFactorRequired signal
	status, env := login(t, eng, map[string]interface{}{"email": "a@x.com", "password": "Secret123"})
	if status != http.StatusUnauthorized {
		t.Fatalf("login without code: want 401, got %d", status)
	}
	if env.Code != util.CodeTwoFactorRequired {
		t.Errorf("login without code: want code %d, got %d", util.CodeTwoFactorRequired, env.Code)
	}

	// a stale, out-of-window code is a plain auth failure
	status, env = login(t, eng, map[string]interface{}{
		"email":                     "a@x.com",
		"password":                  "Secret123",
		"twoFactorProvider":         "authenticatorApp",
		"twoFactorVerificationCode": currentCode(t, secret, time.Now().Add(-2*time.Minute)),
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("stale code: want 401, got %d", status)
	}
	if env.Code != util.CodeAuth {
		t.Errorf("stale code: want code %d, got %d", util.CodeAuth, env.Code)
	}

	// a code within the window succeeds
	status, env = login(t, eng, map[string]interface{}{
		"email":                     "a@x.com",
		"password":                  "Secret123",
		"twoFactorProvider":         "authenticatorApp",
		"twoFactorVerificationCode": currentCode(t, secret, time.Now()),
	})
	if status != http.StatusOK {
		t.Fatalf("valid code: want 200, got %d", status)
	}
	if env.Data["token"] == nil {
		t.Fatal("valid code login must return a token")
	}

	// the wrong password still fails generically even with a valid code
	status, _ = login(t, eng, map[string]interface{}{
		"email":                     "a@x.com",
		"password":                  "Wrong999",
		"twoFactorProvider":         "authenticatorApp",
		"twoFactorVerificationCode": currentCode(t, secret, time.Now()),
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong password with code: want 401, got %d", status)
	}
}

func TestSetAuthenticator_InvalidCode(t *testing.T) {
	eng, db := setupServer(t, &fakeProvider{})

	tok := signup(t, eng, "a@x.com", "Secret123")

	_, env := doJSON(t, eng, http.MethodPost, "/api/v1/two-factor-auth/get-authenticator", tok, map[string]interface{}{
		"masterPassword": "Secret123",
	})
	secret := env.Data["secret"].(string)

	w, _ := doJSON(t, eng, http.MethodPatch, "/api/v1/two-factor-auth/authenticator", tok, map[string]interface{}{
		"masterPassword": "Secret123",
		"secret":         secret,
		"token":          "000000",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid code: want 401, got %d", w.Code)
	}

	// the failed enrollment left nothing behind
	var stored struct{ AuthenticatorSecret string }
	db.Model(&models.User{}).Select("authenticator_secret").Where("email = ?", "a@x.com").First(&stored)
	if stored.AuthenticatorSecret != "" {
		t.Error("failed enrollment must not persist the provisional secret")
	}
}

func TestSetAuthenticator_Validation(t *testing.T) {
	eng, _ := setupServer(t, &fakeProvider{})

	tok := signup(t, eng, "a@x.com", "Secret123")

	// missing secret or token
	w, _ := doJSON(t, eng, http.MethodPatch, "/api/v1/two-factor-auth/authenticator", tok, map[string]interface{}{
		"masterPassword": "Secret123",
		"secret":         "JBSWY3DPEHPK3PXP",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing token field: want 400, got %d", w.Code)
	}
}

func TestSetAuthenticator_AlreadySet(t *testing.T) {
	eng, _ := setupServer(t, &fakeProvider{})

	tok := signup(t, eng, "a@x.com", "Secret123")
	enroll(t, eng, tok, "Secret123")

	// enrolling again without disabling first is rejected
	_, env := doJSON(t, eng, http.MethodPost, "/api/v1/two-factor-auth/get-authenticator", tok, map[string]interface{}{
		"masterPassword": "Secret123",
	})
	if enabled, _ := env.Data["enabled"].(bool); !enabled {
		t.Fatal("get-authenticator should report the enrolled secret")
	}

	secret2, _, _ := util.NewTOTPSecret("SavePass", "a@x.com")
	w, _ := doJSON(t, eng, http.MethodPatch, "/api/v1/two-factor-auth/authenticator", tok, map[string]interface{}{
		"masterPassword": "Secret123",
		"secret":         secret2,
		"token":          currentCode(t, secret2, time.Now()),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("already set: want 400, got %d", w.Code)
	}
}

func TestDisableAuthenticator(t *testing.T) {
	eng, _ := setupServer(t, &fakeProvider{})

	tok := signup(t, eng, "a@x.com", "Secret123")
	enroll(t, eng, tok, "Secret123")

	w, env := doJSON(t, eng, http.MethodPatch, "/api/v1/two-factor-auth/disable-authenticator", tok, map[string]interface{}{
		"masterPassword": "Secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("disable: want 200, got %d", w.Code)
	}
	if enabled, _ := env.Data["enabled"].(bool); enabled {
		t.Error("disable must report enabled=false")
	}

	// login no longer demands a code
	status, _ := login(t, eng, map[string]interface{}{"email": "a@x.com", "password": "Secret123"})
	if status != http.StatusOK {
		t.Fatalf("login after disable: want 200, got %d", status)
	}
}
