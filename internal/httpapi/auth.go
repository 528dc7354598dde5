package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/cache"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/logging"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/xid"
)

const (
	SessionSignedIn  = "signed_in"
	SessionSignedOut = "signed_out"

	tokenIssuer = "pure-gold-erp"
	defaultRole = "staff"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// SessionListener is told about sign-in and sign-out of a session.
type SessionListener func(event string, actor domain.Actor)

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, email string, password string) error
}

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	revoker   cache.SessionRevoker
	users     map[string]credential
	listeners []SessionListener
	validate  *validator.Validate
	log       zerolog.Logger
}

type credential struct {
	id       string
	password string
	role     string
	active   bool
	created  time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, revoker cache.SessionRevoker, logger zerolog.Logger) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if revoker == nil {
		revoker = cache.NewMemoryRevoker()
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		revoker:   revoker,
		users:     make(map[string]credential),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logging.Component(logger, "auth"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.bootstrapUsers(ctx)
	return manager
}

// OnSessionChange registers a listener for sign-in and sign-out events.
func (a *AuthManager) OnSessionChange(listener SessionListener) {
	if listener == nil {
		return
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, listener)
	a.mu.Unlock()
}

// SignUp registers a staff account and signs it in.
func (a *AuthManager) SignUp(ctx context.Context, req domain.SignUpRequest) (domain.AuthSession, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := a.validate.Struct(req); err != nil {
		return domain.AuthSession{}, fmt.Errorf("%w: email must be valid and password 6-72 characters", store.ErrInvalidInput)
	}

	a.bootstrapUsers(ctx)
	a.mu.RLock()
	_, exists := a.users[req.Email]
	a.mu.RUnlock()
	if exists {
		return domain.AuthSession{}, ErrEmailTaken
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("hash password: %w", err)
	}

	cred := credential{
		id:       xid.New("usr"),
		password: passwordHash,
		role:     defaultRole,
		active:   true,
		created:  time.Now().UTC(),
	}
	if a.userStore != nil {
		err := a.userStore.CreateUser(ctx, domain.UserAccount{
			ID:        cred.id,
			Email:     req.Email,
			Password:  passwordHash,
			Role:      cred.role,
			Active:    true,
			CreatedAt: cred.created,
		})
		if errors.Is(err, store.ErrConflict) {
			return domain.AuthSession{}, ErrEmailTaken
		}
		if err != nil {
			return domain.AuthSession{}, err
		}
	}

	a.mu.Lock()
	a.users[req.Email] = cred
	a.mu.Unlock()

	a.log.Info().Str("email", req.Email).Msg("account created")
	return a.openSession(req.Email, cred)
}

func (a *AuthManager) SignIn(ctx context.Context, req domain.SignInRequest) (domain.AuthSession, error) {
	a.bootstrapUsers(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	a.mu.RLock()
	cred, ok := a.users[email]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, req.Password) {
		return domain.AuthSession{}, ErrInvalidCredentials
	}
	if !cred.active {
		return domain.AuthSession{}, ErrAccountInactive
	}
	return a.openSession(email, cred)
}

// SignOut revokes the session for the rest of the token lifetime and tells
// the listeners.
func (a *AuthManager) SignOut(ctx context.Context, actor domain.Actor) error {
	if actor.SessionID == "" {
		return ErrInvalidToken
	}
	if err := a.revoker.Revoke(ctx, actor.SessionID, time.Now().UTC().Add(a.tokenTTL)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	a.notify(SessionSignedOut, actor)
	return nil
}

// ParseToken verifies the bearer token and rejects revoked sessions.
func (a *AuthManager) ParseToken(ctx context.Context, tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.ID == "" {
		return domain.Actor{}, ErrInvalidToken
	}

	revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		a.log.Warn().Err(err).Str("session_id", claims.ID).Msg("revocation check failed")
		return domain.Actor{}, ErrInvalidToken
	}
	if revoked {
		return domain.Actor{}, ErrInvalidToken
	}

	return domain.Actor{UserID: sub, Email: claims.Email, Role: claims.Role, SessionID: claims.ID}, nil
}

// CurrentSession describes the signed-in actor without reissuing a token.
func (a *AuthManager) CurrentSession(actor domain.Actor) domain.AuthSession {
	return domain.AuthSession{
		SessionID: actor.SessionID,
		UserID:    actor.UserID,
		Email:     actor.Email,
		Role:      actor.Role,
	}
}

func (a *AuthManager) openSession(email string, cred credential) (domain.AuthSession, error) {
	sessionID := xid.New("ses")
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(cred.id, email, cred.role, sessionID, expiresAt)
	if err != nil {
		return domain.AuthSession{}, err
	}

	a.notify(SessionSignedIn, domain.Actor{UserID: cred.id, Email: email, Role: cred.role, SessionID: sessionID})
	return domain.AuthSession{
		AccessToken: token,
		SessionID:   sessionID,
		UserID:      cred.id,
		Email:       email,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) sign(userID string, email string, role string, sessionID string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Email: email,
		Role:  role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) notify(event string, actor domain.Actor) {
	a.mu.RLock()
	listeners := append([]SessionListener(nil), a.listeners...)
	a.mu.RUnlock()
	for _, listener := range listeners {
		listener(event, actor)
	}
}

// bootstrapUsers loads accounts from the user store into the credential
// cache and upgrades plain-text passwords to bcrypt hashes.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to load users")
		return
	}
	if len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		email := strings.ToLower(strings.TrimSpace(user.Email))
		if email == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				if err := a.userStore.UpdateUserPassword(ctx, email, hashed); err != nil {
					a.log.Warn().Err(err).Str("email", email).Msg("failed to upgrade password hash")
				}
			}
		}
		a.users[email] = credential{
			id:       user.ID,
			password: password,
			role:     user.Role,
			active:   user.Active,
			created:  user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
