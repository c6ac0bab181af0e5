package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
	called bool
}

func (s *stubValidator) Validate(token string) (*auth.Claims, error) {
	s.called = true
	return s.claims, s.err
}

func TestPublicPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/health", true},
		{"/healthz", true},
		{"/readyz", true},
		{"/metrics", true},
		{"/playground", true},
		{"/playground/sandbox", true},
		{"/arena", true},
		{"/auth/login", true},
		{"/auth/register", true},
		{"/auth/refresh", true},
		{"/static/app.css", true},
		{"/assets/logo.png", true},
		{"/auth/me", false},
		{"/auth/logout", false},
		{"/auth/profile", false},
		{"/auth/change-password", false},
		{"/staticfiles", false},
		{"/anything", false},
	}

	for _, tc := range tests {
		if got := middlewares.PublicPath(tc.path); got != tc.want {
			t.Errorf("PublicPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func gateRouter(v middlewares.TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.NewAuthMiddleware(v).Gate())

	r.GET("/protected", func(c *gin.Context) {
		id, _ := middlewares.UserIDFromContext(c)
		role, _ := middlewares.RoleFromContext(c)
		raw, _ := middlewares.TokenFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "token": raw})
	})
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r
}

func doGet(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)

	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestGate_PublicPathSkipsValidation(t *testing.T) {
	v := &stubValidator{err: errors.New("should not run")}
	r := gateRouter(v)

	if w := doGet(r, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	if v.called {
		t.Errorf("validator should not run for public paths")
	}
}

func TestGate_HeaderShapeRejectedBeforeValidation(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token abc"},
		{"bare scheme", "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := &stubValidator{}
			r := gateRouter(v)

			if w := doGet(r, "/protected", tc.header); w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}

			if v.called {
				t.Errorf("validator should not run on a malformed header")
			}
		})
	}
}

func TestGate_InvalidTokenRejected(t *testing.T) {
	v := &stubValidator{err: errors.New("bad token")}
	r := gateRouter(v)

	if w := doGet(r, "/protected", "Bearer whatever"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGate_ValidTokenSetsIdentity(t *testing.T) {
	v := &stubValidator{
		claims: &auth.Claims{
			Email:    "a@x.com",
			Username: "a",
			Role:     "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user-1",
			},
		},
	}
	r := gateRouter(v)

	w := doGet(r, "/protected", "Bearer raw-token")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	body := w.Body.String()

	for _, want := range []string{`"id":"user-1"`, `"role":"admin"`, `"token":"raw-token"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}
