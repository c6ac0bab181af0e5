package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/cache"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/repo/postgres"
	"github.com/geocoder89/authhub/internal/security"
	"github.com/google/uuid"
)

const minPasswordLen = 8

type UserStore interface {
	Create(ctx context.Context, u user.User) error
	GetByIdentifier(ctx context.Context, identifier string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetInfoByID(ctx context.Context, id string) (user.Info, error)
	TouchLastLogin(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, fullName, avatarURL *string) (user.Info, error)
}

type SessionStore interface {
	Create(ctx context.Context, s postgres.Session) error
}

// AuthResponse bundles a freshly issued token pair with the public profile.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	User         user.Info `json:"user"`
}

// Auth orchestrates registration, login, refresh, logout and profile
// mutation. All collaborators are injected at construction; the service
// holds no ambient state and no locks.
type Auth struct {
	users    UserStore
	sessions SessionStore
	codec    *auth.Codec
	cache    cache.Cache
	log      *slog.Logger
	prom     *observability.Prom

	accessTTL time.Duration
}

func NewAuth(users UserStore, sessions SessionStore, codec *auth.Codec, c cache.Cache, log *slog.Logger, prom *observability.Prom, accessTTL time.Duration) *Auth {
	return &Auth{
		users:     users,
		sessions:  sessions,
		codec:     codec,
		cache:     c,
		log:       log,
		prom:      prom,
		accessTTL: accessTTL,
	}
}

func (a *Auth) Register(ctx context.Context, email, username, password string, fullName *string) (*AuthResponse, error) {
	if len(password) < minPasswordLen {
		a.prom.ObserveAuth("register", "rejected")
		return nil, &ValidationError{Message: msgPasswordTooShort}
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		a.prom.ObserveAuth("register", "error")
		return nil, err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         "user",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = a.users.Create(ctx, u)

	if err != nil {
		// the unique constraint arbitrates racing registrations; exactly
		// one of two racing requests sees the conflict
		if errors.Is(err, postgres.ErrDuplicateUser) {
			a.prom.ObserveAuth("register", "rejected")
			return nil, &ConflictError{Message: msgDuplicateUser}
		}

		a.prom.ObserveAuth("register", "error")
		return nil, err
	}

	a.prom.ObserveAuth("register", "ok")
	a.log.InfoContext(ctx, "user registered", "user_id", u.ID)

	return a.issue(ctx, u.Info())
}

func (a *Auth) Login(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	u, err := a.users.GetByIdentifier(ctx, identifier)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			a.prom.ObserveAuth("login", "rejected")
			return nil, &AuthError{Message: msgInvalidCredentials}
		}

		a.prom.ObserveAuth("login", "error")
		return nil, err
	}

	if !u.IsActive {
		a.prom.ObserveAuth("login", "rejected")
		return nil, &AuthError{Message: msgAccountDisabled}
	}

	err = security.CheckPassword(u.PasswordHash, password)

	if err != nil {
		a.prom.ObserveAuth("login", "rejected")
		return nil, &AuthError{Message: msgInvalidCredentials}
	}

	err = a.users.TouchLastLogin(ctx, u.ID)

	if err != nil {
		a.prom.ObserveAuth("login", "error")
		return nil, err
	}

	a.prom.ObserveAuth("login", "ok")

	return a.issue(ctx, u.Info())
}

// Refresh validates a refresh token and issues a brand-new token pair. Old
// tokens are not revoked; they remain valid until natural expiry.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := a.codec.Decode(refreshToken)

	if err != nil {
		a.prom.ObserveAuth("refresh", "rejected")
		return nil, &AuthError{Message: msgInvalidToken}
	}

	// re-check the user: tokens outlive deactivation and deletion
	u, err := a.users.GetByID(ctx, claims.UserID())

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			a.prom.ObserveAuth("refresh", "rejected")
			return nil, &AuthError{Message: msgUserNotFound}
		}

		a.prom.ObserveAuth("refresh", "error")
		return nil, err
	}

	if !u.IsActive {
		a.prom.ObserveAuth("refresh", "rejected")
		return nil, &AuthError{Message: msgAccountDisabled}
	}

	a.prom.ObserveAuth("refresh", "ok")

	return a.issue(ctx, u.Info())
}

// Validate decodes and signature/expiry-checks a token.
func (a *Auth) Validate(token string) (*auth.Claims, error) {
	claims, err := a.codec.Decode(token)

	if err != nil {
		return nil, &AuthError{Message: msgInvalidToken}
	}

	return claims, nil
}

func (a *Auth) GetUser(ctx context.Context, userID string) (user.Info, error) {
	key := userCacheKey(userID)

	if a.cache != nil {
		if b, ok := a.cache.Get(ctx, key); ok {
			var info user.Info
			if err := json.Unmarshal(b, &info); err == nil {
				return info, nil
			}
			// a corrupt entry falls through to the store
			a.cache.Delete(ctx, key)
		}
	}

	info, err := a.users.GetInfoByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return user.Info{}, &NotFoundError{Message: msgUserNotFound}
		}

		return user.Info{}, err
	}

	if a.cache != nil {
		if b, err := json.Marshal(info); err == nil {
			a.cache.Set(ctx, key, b)
		}
	}

	return info, nil
}

// Logout validates the token and nothing more. There is no server-side
// revocation: tokens stay valid until natural expiry and sessions remain
// audit records only.
func (a *Auth) Logout(token string) error {
	_, err := a.codec.Decode(token)

	if err != nil {
		return &AuthError{Message: msgInvalidToken}
	}

	return nil
}

func (a *Auth) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return &ValidationError{Message: msgPasswordTooShort}
	}

	u, err := a.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return &NotFoundError{Message: msgUserNotFound}
		}

		return err
	}

	err = security.CheckPassword(u.PasswordHash, oldPassword)

	if err != nil {
		return &AuthError{Message: msgInvalidOldPassword}
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		return err
	}

	err = a.users.UpdatePassword(ctx, userID, hash)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return &NotFoundError{Message: msgUserNotFound}
		}

		return err
	}

	a.log.InfoContext(ctx, "password changed", "user_id", userID)

	return nil
}

// UpdateProfile applies a partial update: nil fields leave stored values
// unchanged.
func (a *Auth) UpdateProfile(ctx context.Context, userID string, fullName, avatarURL *string) (user.Info, error) {
	info, err := a.users.UpdateProfile(ctx, userID, fullName, avatarURL)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return user.Info{}, &NotFoundError{Message: msgUserNotFound}
		}

		return user.Info{}, err
	}

	if a.cache != nil {
		a.cache.Delete(ctx, userCacheKey(userID))
	}

	return info, nil
}

// issue builds the shared token-pair response for register/login/refresh:
// access expiry = now + configured TTL, refresh expiry = now + 30 days, both
// carrying the same user snapshot. A session row keyed by the token hashes is
// persisted for audit.
func (a *Auth) issue(ctx context.Context, u user.Info) (*AuthResponse, error) {
	accessToken, accessExp, err := a.codec.IssueAccess(u.ID, u.Email, u.Username, u.Role)

	if err != nil {
		return nil, err
	}

	refreshToken, _, err := a.codec.IssueRefresh(u.ID, u.Email, u.Username, u.Role)

	if err != nil {
		return nil, err
	}

	session := postgres.Session{
		ID:               uuid.NewString(),
		UserID:           u.ID,
		TokenHash:        a.codec.HashToken(accessToken),
		RefreshTokenHash: a.codec.HashToken(refreshToken),
		ExpiresAt:        accessExp,
		CreatedAt:        time.Now().UTC(),
	}

	err = a.sessions.Create(ctx, session)

	if err != nil {
		a.log.ErrorContext(ctx, "session persist failed", "user_id", u.ID, "err", err)
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(a.accessTTL.Seconds()),
		User:         u,
	}, nil
}

func userCacheKey(id string) string {
	return "user:" + id
}
