package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
)

const (
	// ActorKey holds the resolved models.Actor in the gin context
	ActorKey = "actor"
	// UserIDKey mirrors the actor's user id for request logging
	UserIDKey = "user_id"

	HeaderUserID       = "X-User-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderOrganization = "X-Organization"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnknownRole        = errors.New("unknown role")
)

// Authenticator resolves the caller of an HTTP request
type Authenticator interface {
	Authenticate(r *http.Request) (models.Actor, error)
}

// New builds the authenticator selected by cfg.Provider
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Provider {
	case "casdoor", "":
		return NewCasdoorAuthenticator(cfg)
	case "header":
		return HeaderAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", cfg.Provider)
	}
}

// ===== CASDOOR =====

// CasdoorAuthenticator verifies bearer tokens issued by Casdoor
type CasdoorAuthenticator struct {
	client *casdoorsdk.Client
}

func NewCasdoorAuthenticator(cfg config.AuthConfig) (*CasdoorAuthenticator, error) {
	if cfg.Endpoint == "" || cfg.Certificate == "" {
		return nil, errors.New("casdoor endpoint and certificate are required")
	}
	client := casdoorsdk.NewClient(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, cfg.Certificate, cfg.Organization, cfg.Application)
	return &CasdoorAuthenticator{client: client}, nil
}

func (a *CasdoorAuthenticator) Authenticate(r *http.Request) (models.Actor, error) {
	token := bearerToken(r)
	if token == "" {
		return models.Actor{}, ErrMissingCredentials
	}

	claims, err := a.client.ParseJwtToken(token)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user := claims.User
	role, err := casdoorRole(user)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{UserID: user.Name, Role: role, Organization: user.Owner}, nil
}

// casdoorRole maps Casdoor admin flags, roles and the user tag onto service roles
func casdoorRole(user casdoorsdk.User) (models.UserRole, error) {
	if user.IsAdmin {
		return models.RoleAdmin, nil
	}
	for _, r := range user.Roles {
		if r == nil {
			continue
		}
		if role, ok := ParseRole(r.Name); ok {
			return role, nil
		}
	}
	if role, ok := ParseRole(user.Tag); ok {
		return role, nil
	}
	return "", ErrUnknownRole
}

// ===== HEADERS =====

// HeaderAuthenticator trusts identity headers set by an upstream gateway
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (models.Actor, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return models.Actor{}, ErrMissingCredentials
	}
	role, ok := ParseRole(r.Header.Get(HeaderUserRole))
	if !ok {
		return models.Actor{}, ErrUnknownRole
	}
	return models.Actor{
		UserID:       userID,
		Role:         role,
		Organization: strings.TrimSpace(r.Header.Get(HeaderOrganization)),
	}, nil
}

// ParseRole accepts the service roles plus the faculty aliases used by the identity provider
func ParseRole(s string) (models.UserRole, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return models.RoleStudent, true
	case "teacher", "faculty", "instructor":
		return models.RoleTeacher, true
	case "admin":
		return models.RoleAdmin, true
	}
	return "", false
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ===== MIDDLEWARE =====

// Middleware authenticates every request and stores the actor in the context
func Middleware(a Authenticator, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := a.Authenticate(c.Request)
		if err != nil {
			logger.Warn("Authentication failed",
				"path", c.Request.URL.Path,
				"remote_addr", c.ClientIP(),
				"error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Authentication required",
				"code":    "UNAUTHENTICATED",
			})
			return
		}

		c.Set(ActorKey, actor)
		c.Set(UserIDKey, actor.UserID)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Authentication required",
				"code":    "UNAUTHENTICATED",
			})
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"message": "Forbidden - insufficient permissions",
			"code":    "FORBIDDEN",
		})
	}
}

func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
