package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/http/handlers"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fakeAuthService struct {
	registerFn       func(ctx context.Context, email, username, password string, fullName *string) (*service.AuthResponse, error)
	loginFn          func(ctx context.Context, identifier, password string) (*service.AuthResponse, error)
	refreshFn        func(ctx context.Context, refreshToken string) (*service.AuthResponse, error)
	logoutFn         func(token string) error
	getUserFn        func(ctx context.Context, userID string) (user.Info, error)
	changePasswordFn func(ctx context.Context, userID, oldPassword, newPassword string) error
	updateProfileFn  func(ctx context.Context, userID string, fullName, avatarURL *string) (user.Info, error)
}

func (f *fakeAuthService) Register(ctx context.Context, email, username, password string, fullName *string) (*service.AuthResponse, error) {
	return f.registerFn(ctx, email, username, password, fullName)
}

func (f *fakeAuthService) Login(ctx context.Context, identifier, password string) (*service.AuthResponse, error) {
	return f.loginFn(ctx, identifier, password)
}

func (f *fakeAuthService) Refresh(ctx context.Context, refreshToken string) (*service.AuthResponse, error) {
	return f.refreshFn(ctx, refreshToken)
}

func (f *fakeAuthService) Logout(token string) error {
	if f.logoutFn != nil {
		return f.logoutFn(token)
	}
	return nil
}

func (f *fakeAuthService) GetUser(ctx context.Context, userID string) (user.Info, error) {
	return f.getUserFn(ctx, userID)
}

func (f *fakeAuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return f.changePasswordFn(ctx, userID, oldPassword, newPassword)
}

func (f *fakeAuthService) UpdateProfile(ctx context.Context, userID string, fullName, avatarURL *string) (user.Info, error) {
	return f.updateProfileFn(ctx, userID, fullName, avatarURL)
}

type fakeValidator struct {
	validateFn func(token string) (*auth.Claims, error)
	called     bool
}

func (f *fakeValidator) Validate(token string) (*auth.Claims, error) {
	f.called = true
	if f.validateFn != nil {
		return f.validateFn(token)
	}
	return nil, errors.New("invalid token")
}

// acceptToken builds a validator that accepts only the given raw token.
func acceptToken(raw, userID string) *fakeValidator {
	return &fakeValidator{
		validateFn: func(token string) (*auth.Claims, error) {
			if token != raw {
				return nil, errors.New("invalid token")
			}
			return &auth.Claims{
				Email:    "a@x.com",
				Username: "a",
				Role:     "user",
				RegisteredClaims: jwt.RegisteredClaims{
					Subject: userID,
				},
			}, nil
		},
	}
}

func newTestRouter(svc handlers.AuthService, tokens middlewares.TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.NewAuthMiddleware(tokens).Gate())

	h := handlers.NewAuthHandler(svc)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.Me)
	authGroup.PUT("/profile", h.UpdateProfile)
	authGroup.POST("/change-password", h.ChangePassword)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}

	return body
}

func TestRegister_Created(t *testing.T) {
	svc := &fakeAuthService{
		registerFn: func(ctx context.Context, email, username, password string, fullName *string) (*service.AuthResponse, error) {
			return &service.AuthResponse{
				AccessToken:  "access",
				RefreshToken: "refresh",
				TokenType:    "Bearer",
				ExpiresIn:    3600,
				User:         user.Info{ID: "user-1", Email: email, Username: username, Role: "user"},
			}, nil
		},
	}
	r := newTestRouter(svc, &fakeValidator{})

	w := doJSON(t, r, http.MethodPost, "/auth/register",
		`{"email":"a@x.com","username":"a","password":"Password1!"}`, "")

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)

	if body["access_token"] != "access" || body["token_type"] != "Bearer" {
		t.Errorf("unexpected body: %v", body)
	}

	u, ok := body["user"].(map[string]any)
	if !ok || u["email"] != "a@x.com" {
		t.Errorf("unexpected user payload: %v", body["user"])
	}
}

func TestRegister_BindFailureSkipsService(t *testing.T) {
	called := false
	svc := &fakeAuthService{
		registerFn: func(ctx context.Context, email, username, password string, fullName *string) (*service.AuthResponse, error) {
			called = true
			return nil, nil
		},
	}
	r := newTestRouter(svc, &fakeValidator{})

	w := doJSON(t, r, http.MethodPost, "/auth/register",
		`{"email":"not-an-email","username":"a","password":"Password1!"}`, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	if msg := decodeBody(t, w)["error"]; msg != "email must be a valid email address" {
		t.Errorf("error = %q", msg)
	}

	if called {
		t.Errorf("service should not be reached on a bind failure")
	}
}

func TestRegister_ServiceErrorsMapped(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "short password",
			err:        &service.ValidationError{Message: "password must be at least 8 characters long"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "password must be at least 8 characters long",
		},
		{
			name:       "duplicate",
			err:        &service.ConflictError{Message: "email or username already exists"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "email or username already exists",
		},
		{
			name:       "unexpected",
			err:        errors.New("pool exhausted"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeAuthService{
				registerFn: func(ctx context.Context, email, username, password string, fullName *string) (*service.AuthResponse, error) {
					return nil, tc.err
				},
			}
			r := newTestRouter(svc, &fakeValidator{})

			w := doJSON(t, r, http.MethodPost, "/auth/register",
				`{"email":"a@x.com","username":"a","password":"x"}`, "")

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}

			if msg := decodeBody(t, w)["error"]; msg != tc.wantMsg {
				t.Errorf("error = %q, want %q", msg, tc.wantMsg)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &fakeAuthService{
		loginFn: func(ctx context.Context, identifier, password string) (*service.AuthResponse, error) {
			return nil, &service.AuthError{Message: "invalid credentials"}
		},
	}
	r := newTestRouter(svc, &fakeValidator{})

	w := doJSON(t, r, http.MethodPost, "/auth/login",
		`{"username_or_email":"a","password":"nope"}`, "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	if msg := decodeBody(t, w)["error"]; msg != "invalid credentials" {
		t.Errorf("error = %q", msg)
	}
}

func TestRefresh_MissingField(t *testing.T) {
	r := newTestRouter(&fakeAuthService{}, &fakeValidator{})

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{}`, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestMe_RequiresToken(t *testing.T) {
	tokens := &fakeValidator{}
	r := newTestRouter(&fakeAuthService{}, tokens)

	w := doJSON(t, r, http.MethodGet, "/auth/me", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	if tokens.called {
		t.Errorf("validator should not run when the header is absent")
	}
}

func TestMe_ReturnsProfile(t *testing.T) {
	svc := &fakeAuthService{
		getUserFn: func(ctx context.Context, userID string) (user.Info, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return user.Info{ID: userID, Email: "a@x.com", Username: "a", Role: "user"}, nil
		},
	}
	r := newTestRouter(svc, acceptToken("good-token", "user-1"))

	w := doJSON(t, r, http.MethodGet, "/auth/me", "", "good-token")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	if body := decodeBody(t, w); body["username"] != "a" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestMe_DeactivatedUserIsNotFound(t *testing.T) {
	svc := &fakeAuthService{
		getUserFn: func(ctx context.Context, userID string) (user.Info, error) {
			return user.Info{}, &service.NotFoundError{Message: "user not found"}
		},
	}
	r := newTestRouter(svc, acceptToken("good-token", "user-1"))

	w := doJSON(t, r, http.MethodGet, "/auth/me", "", "good-token")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestLogout_AlwaysSucceedsForValidToken(t *testing.T) {
	var gotToken string
	svc := &fakeAuthService{
		logoutFn: func(token string) error {
			gotToken = token
			return nil
		},
	}
	r := newTestRouter(svc, acceptToken("good-token", "user-1"))

	w := doJSON(t, r, http.MethodPost, "/auth/logout", "", "good-token")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	if msg := decodeBody(t, w)["message"]; msg != "Logged out successfully" {
		t.Errorf("message = %q", msg)
	}

	if gotToken != "good-token" {
		t.Errorf("service should receive the raw bearer token, got %q", gotToken)
	}
}

func TestUpdateProfile_PassesPointersThrough(t *testing.T) {
	svc := &fakeAuthService{
		updateProfileFn: func(ctx context.Context, userID string, fullName, avatarURL *string) (user.Info, error) {
			if fullName == nil || *fullName != "Alice" {
				t.Errorf("full_name = %v, want Alice", fullName)
			}
			if avatarURL != nil {
				t.Errorf("omitted avatar_url must stay nil")
			}
			return user.Info{ID: userID, Email: "a@x.com", Username: "a", FullName: fullName, Role: "user"}, nil
		},
	}
	r := newTestRouter(svc, acceptToken("good-token", "user-1"))

	w := doJSON(t, r, http.MethodPut, "/auth/profile", `{"full_name":"Alice"}`, "good-token")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	if body := decodeBody(t, w); body["full_name"] != "Alice" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	svc := &fakeAuthService{
		changePasswordFn: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			return &service.AuthError{Message: "invalid old password"}
		},
	}
	r := newTestRouter(svc, acceptToken("good-token", "user-1"))

	w := doJSON(t, r, http.MethodPost, "/auth/change-password",
		`{"old_password":"wrong","new_password":"NewPassword1"}`, "good-token")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	if msg := decodeBody(t, w)["error"]; msg != "invalid old password" {
		t.Errorf("error = %q", msg)
	}
}

func TestChangePassword_Success(t *testing.T) {
	svc := &fakeAuthService{
		changePasswordFn: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			return nil
		},
	}
	r := newTestRouter(svc, acceptToken("good-token", "user-1"))

	w := doJSON(t, r, http.MethodPost, "/auth/change-password",
		`{"old_password":"OldPassword1","new_password":"NewPassword1"}`, "good-token")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	if msg := decodeBody(t, w)["message"]; msg != "Password changed successfully" {
		t.Errorf("message = %q", msg)
	}
}
