// Package mockapi is an in-memory stand-in for the company-management
// backend. It implements the auth endpoints the gateway depends on and one
// sample resource, for local runs and tests.
package mockapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"command-center/internal/model"
	"command-center/pkg/apierror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	DefaultPassword = "password123"
)

type user struct {
	profile      model.UserProfile
	passwordHash string
}

// SeedUser is an account created at startup.
type SeedUser struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// DefaultUsers has one account per dashboard role.
func DefaultUsers() []SeedUser {
	return []SeedUser{
		{Email: "admin@example.com", Password: DefaultPassword, FullName: "Ada Admin", Role: "super_admin"},
		{Email: "hr@example.com", Password: DefaultPassword, FullName: "Hanna Reyes", Role: "hr"},
		{Email: "lead@example.com", Password: DefaultPassword, FullName: "Lee Turner", Role: "team_lead"},
		{Email: "employee@example.com", Password: DefaultPassword, FullName: "Eli Moss", Role: "employee"},
		{Email: "client@example.com", Password: DefaultPassword, FullName: "Cleo Park", Role: "client"},
	}
}

type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// HashCost is the bcrypt cost for seeded passwords.
	HashCost int
	Users    []SeedUser
}

type claims struct {
	UserID  string
	Role    string
	Type    string
	TokenID string
}

type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu            sync.RWMutex
	usersByEmail  map[string]*user
	usersByID     map[string]*user
	refreshTokens map[string]string
	issuedAccess  map[string]struct{}
	revokedAccess map[string]struct{}
}

func NewService(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		opts.Secret = "mock-secret"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Users == nil {
		opts.Users = DefaultUsers()
	}

	s := &Service{
		secret:        []byte(opts.Secret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		usersByEmail:  map[string]*user{},
		usersByID:     map[string]*user{},
		refreshTokens: map[string]string{},
		issuedAccess:  map[string]struct{}{},
		revokedAccess: map[string]struct{}{},
	}

	for _, seed := range opts.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), opts.HashCost)
		if err != nil {
			return nil, err
		}
		u := &user{
			profile: model.UserProfile{
				ID:       uuid.NewString(),
				Email:    seed.Email,
				FullName: seed.FullName,
				Role:     seed.Role,
			},
			passwordHash: string(hash),
		}
		s.usersByEmail[normalizeEmail(seed.Email)] = u
		s.usersByID[u.profile.ID] = u
	}

	return s, nil
}

func (s *Service) Login(email string, password string) (model.TokenPair, model.UserProfile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return model.TokenPair{}, model.UserProfile{}, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest)
	}

	s.mu.RLock()
	u, exists := s.usersByEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !exists {
		return model.TokenPair{}, model.UserProfile{}, apierror.New("UNAUTHORIZED", "Invalid credentials", "", http.StatusUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)); err != nil {
		return model.TokenPair{}, model.UserProfile{}, apierror.New("UNAUTHORIZED", "Invalid credentials", "", http.StatusUnauthorized)
	}

	pair, err := s.issueTokenPair(u)
	if err != nil {
		return model.TokenPair{}, model.UserProfile{}, err
	}
	return pair, u.profile, nil
}

// Refresh rotates a refresh token. Each refresh token works once.
func (s *Service) Refresh(refreshToken string) (model.TokenPair, error) {
	c, err := s.validateToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.mu.Lock()
	ownerID, exists := s.refreshTokens[refreshToken]
	if !exists || ownerID != c.UserID {
		s.mu.Unlock()
		return model.TokenPair{}, apierror.New("UNAUTHORIZED", "refresh token is invalid", "", http.StatusUnauthorized)
	}
	delete(s.refreshTokens, refreshToken)
	u, userExists := s.usersByID[c.UserID]
	s.mu.Unlock()

	if !userExists {
		return model.TokenPair{}, apierror.New("UNAUTHORIZED", "user not found", "", http.StatusUnauthorized)
	}

	return s.issueTokenPair(u)
}

func (s *Service) Logout(refreshToken string) {
	s.mu.Lock()
	delete(s.refreshTokens, refreshToken)
	s.mu.Unlock()
}

// Authenticate resolves a bearer access token to its user.
func (s *Service) Authenticate(accessToken string) (model.UserProfile, error) {
	c, err := s.validateToken(accessToken, tokenTypeAccess)
	if err != nil {
		return model.UserProfile{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, revoked := s.revokedAccess[c.TokenID]; revoked {
		return model.UserProfile{}, apierror.New("UNAUTHORIZED", "token expired", "", http.StatusUnauthorized)
	}
	u, exists := s.usersByID[c.UserID]
	if !exists {
		return model.UserProfile{}, apierror.New("UNAUTHORIZED", "user not found", "", http.StatusUnauthorized)
	}
	return u.profile, nil
}

// ExpireAccessTokens invalidates every access token issued so far, as if
// they had all run out.
func (s *Service) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.issuedAccess {
		s.revokedAccess[id] = struct{}{}
	}
	s.issuedAccess = map[string]struct{}{}
}

// ActiveRefreshTokens counts refresh tokens that can still be used.
func (s *Service) ActiveRefreshTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refreshTokens)
}

func (s *Service) validateToken(tokenString string, expectedType string) (*claims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.New("UNAUTHORIZED", "invalid token signing method", "", http.StatusUnauthorized)
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.New("UNAUTHORIZED", "token not valid", "", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New("UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized)
	}

	c := &claims{}
	c.Type, _ = claimsMap["typ"].(string)
	c.UserID, _ = claimsMap["sub"].(string)
	c.Role, _ = claimsMap["role"].(string)
	c.TokenID, _ = claimsMap["jti"].(string)

	if c.Type != expectedType {
		return nil, apierror.New("UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized)
	}
	if c.UserID == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	return c, nil
}

func (s *Service) issueTokenPair(u *user) (model.TokenPair, error) {
	now := time.Now().UTC()
	accessJTI := uuid.NewString()

	accessToken, err := s.signToken(jwt.MapClaims{
		"sub":  u.profile.ID,
		"role": u.profile.Role,
		"typ":  tokenTypeAccess,
		"jti":  accessJTI,
		"iat":  now.Unix(),
		"exp":  now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.signToken(jwt.MapClaims{
		"sub": u.profile.ID,
		"typ": tokenTypeRefresh,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.refreshTTL).Unix(),
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	s.mu.Lock()
	s.refreshTokens[refreshToken] = u.profile.ID
	s.issuedAccess[accessJTI] = struct{}{}
	s.mu.Unlock()

	return model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) signToken(c jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.secret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
