package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ksred/curio-api/internal/types"
	"github.com/ksred/curio-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrInvalidToken       = errors.New("invalid token")
)

// Demo credentials registered by the server at startup
var (
	DemoBuyerKey    = "demo-buyer"
	DemoBuyerSecret = "demo-buyer-secret"
	DemoAdminKey    = "demo-admin"
	DemoAdminSecret = "demo-admin-secret"
)

// Credentials represents the API authentication credentials
type Credentials struct {
	APIKey    string `json:"api_key" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID uint       `json:"user_id"`
	Role   types.Role `json:"role"`
}

// Principal converts validated claims into the caller identity
func (c *Claims) Principal() types.Principal {
	return types.Principal{UserID: c.UserID, Role: c.Role}
}

type credential struct {
	secretHash []byte
	principal  types.Principal
}

// Service handles authentication and authorization operations
type Service struct {
	jwtSecret []byte
	tokenTTL  time.Duration

	mu             sync.RWMutex
	apiCredentials map[string]credential
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		jwtSecret:      []byte(jwtSecret),
		tokenTTL:       tokenTTL,
		apiCredentials: make(map[string]credential),
	}
}

// RegisterAPICredentials stores a bcrypt hash of apiSecret for apiKey,
// bound to the principal its tokens will carry
func (s *Service) RegisterAPICredentials(apiKey, apiSecret string, principal types.Principal) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash secret for %s: %w", apiKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiCredentials[apiKey] = credential{secretHash: hash, principal: principal}
	return nil
}

// GenerateToken generates a JWT token for valid API credentials
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	principal, ok := s.validateCredentials(creds)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.IssueToken(principal)
}

// IssueToken signs a token for an already-authenticated principal
func (s *Service) IssueToken(principal types.Principal) (*TokenResponse, error) {
	now := time.Now()
	expiration := now.Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID: principal.UserID,
		Role:   principal.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken verifies signature and expiry and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	switch claims.Role {
	case types.RoleUser, types.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return claims, nil
}

// Authenticate validates a token and returns the caller it names
func (s *Service) Authenticate(tokenString string) (types.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return types.Principal{}, err
	}
	return claims.Principal(), nil
}

func (s *Service) validateCredentials(creds Credentials) (types.Principal, bool) {
	s.mu.RLock()
	cred, exists := s.apiCredentials[creds.APIKey]
	s.mu.RUnlock()
	if !exists {
		return types.Principal{}, false
	}

	if err := bcrypt.CompareHashAndPassword(cred.secretHash, []byte(creds.APISecret)); err != nil {
		return types.Principal{}, false
	}
	return cred.principal, true
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler exchanges API credentials for a JWT
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}
