package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/netpoint-soft/cybercafe-backend/pkg/auth"
	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "cybercafe-test",
		ExpirationMinutes: 15,
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.UserRole, stationID *string) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:    userID,
		Role:      role,
		StationID: stationID,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}
	return token, userID
}

func TestAuthSeedsContextFromBearerToken(t *testing.T) {
	cfg := testJWTConfig()
	station := "till-04"
	token, userID := mintTestToken(t, cfg, enums.UserRoleCashier, &station)

	var gotUser, gotRole, gotStation string
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotStation = StationIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mpesa/inbox", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotUser != userID.String() {
		t.Fatalf("expected user id %s got %s", userID, gotUser)
	}
	if gotRole != string(enums.UserRoleCashier) {
		t.Fatalf("expected cashier role got %s", gotRole)
	}
	if gotStation != station {
		t.Fatalf("expected station %s got %s", station, gotStation)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsTokenSignedWithOtherSecret(t *testing.T) {
	otherCfg := testJWTConfig()
	otherCfg.Secret = "attacker-secret"
	token, _ := mintTestToken(t, otherCfg, enums.UserRoleAdmin, nil)

	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestStationContextRequiresStationClaim(t *testing.T) {
	cfg := testJWTConfig()
	token, _ := mintTestToken(t, cfg, enums.UserRoleCashier, nil)

	handler := Auth(cfg, nil)(StationContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a station claim")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mpesa/initiate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRequireAnyRoleAdmitsListedRoles(t *testing.T) {
	cfg := testJWTConfig()

	cases := []struct {
		role enums.UserRole
		want int
	}{
		{enums.UserRoleAdmin, http.StatusOK},
		{enums.UserRoleManager, http.StatusOK},
		{enums.UserRoleCashier, http.StatusForbidden},
	}

	for _, tc := range cases {
		token, _ := mintTestToken(t, cfg, tc.role, nil)
		handler := Auth(cfg, nil)(RequireAnyRole(nil, "admin", "manager")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/mpesa/reconciliation", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("role %s: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}
