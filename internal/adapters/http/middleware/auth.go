package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pearquote/quote-service/internal/adapters/http/dto"
	"github.com/pearquote/quote-service/internal/platform/config"
	"github.com/pearquote/quote-service/internal/platform/logging"
)

const (
	// ContextKeyIdentity is the gin context key for the authenticated caller.
	ContextKeyIdentity = "identity"

	// Authentication modes.
	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"

	defaultSubjectHeader = "X-User-ID"
	defaultUserIDClaim   = "userId"
	bearerPrefix         = "bearer "
)

// Authentication errors. They never reach the response body verbatim.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Identity is the authenticated caller. UserID is the tenancy key of every operation.
type Identity struct {
	UserID string
	Email  string
}

// Authenticator establishes the caller identity of a request.
type Authenticator interface {
	Authenticate(c *gin.Context) (*Identity, error)
}

// NewAuthenticator returns the authenticator selected by cfg.Mode.
func NewAuthenticator(cfg *config.AuthConfig) (Authenticator, error) {
	if cfg == nil {
		return &HeaderAuthenticator{}, nil
	}

	switch cfg.Mode {
	case "", AuthModeHeader:
		return &HeaderAuthenticator{SubjectHeader: cfg.SubjectHeader, EmailHeader: cfg.EmailHeader}, nil
	case AuthModeJWT:
		return NewJWTAuthenticator(cfg.JWT)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// HeaderAuthenticator trusts identity headers set by an upstream gateway that already verified the caller.
type HeaderAuthenticator struct {
	SubjectHeader string
	EmailHeader   string
}

// Authenticate implements Authenticator.
func (a *HeaderAuthenticator) Authenticate(c *gin.Context) (*Identity, error) {
	header := a.SubjectHeader
	if header == "" {
		header = defaultSubjectHeader
	}

	userID := strings.TrimSpace(c.GetHeader(header))
	if userID == "" {
		return nil, ErrMissingCredentials
	}

	identity := &Identity{UserID: userID}
	if a.EmailHeader != "" {
		identity.Email = c.GetHeader(a.EmailHeader)
	}

	return identity, nil
}

// JWTAuthenticator verifies HS256 bearer tokens.
type JWTAuthenticator struct {
	secret      []byte
	userIDClaim string
	parser      *jwt.Parser
}

// NewJWTAuthenticator creates a bearer token verifier. The secret is required.
func NewJWTAuthenticator(cfg config.JWTConfig) (*JWTAuthenticator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth.jwt.secret is required in jwt mode")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
	}

	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claim := cfg.UserIDClaim
	if claim == "" {
		claim = defaultUserIDClaim
	}

	return &JWTAuthenticator{
		secret:      []byte(cfg.Secret),
		userIDClaim: claim,
		parser:      jwt.NewParser(opts...),
	}, nil
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(c *gin.Context) (*Identity, error) {
	raw := bearerToken(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}

	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID := claimString(claims[a.userIDClaim])
	if userID == "" {
		userID, _ = claims.GetSubject()
	}

	if userID == "" {
		return nil, fmt.Errorf("%w: no %q or sub claim", ErrInvalidToken, a.userIDClaim)
	}

	email, _ := claims["email"].(string)

	return &Identity{UserID: userID, Email: email}, nil
}

// RequireAuth returns middleware that rejects unauthenticated requests with 401.
// The identity is stored on the gin context and in the request context, and the
// request logger gains a user_id attribute.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.Authenticate(c)
		if err != nil {
			logging.FromContext(c.Request.Context()).Debug("authentication failed", slog.String("error", err.Error()))
			dto.AbortWithCode(c, dto.ErrorCodeUnauthorized, "authentication required")

			return
		}

		ctx := ContextWithIdentity(c.Request.Context(), identity)
		ctx = logging.WithUserID(ctx, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyIdentity, identity)

		c.Next()
	}
}

// GetIdentity returns the caller identity stored by RequireAuth, or nil.
func GetIdentity(c *gin.Context) *Identity {
	if v, ok := c.Get(ContextKeyIdentity); ok {
		if identity, isIdentity := v.(*Identity); isIdentity {
			return identity
		}
	}

	return IdentityFromContext(c.Request.Context())
}

// UserID returns the authenticated caller's user ID, or "" outside RequireAuth.
func UserID(c *gin.Context) string {
	if identity := GetIdentity(c); identity != nil {
		return identity.UserID
	}

	return ""
}

// ContextWithIdentity stores the caller identity in ctx.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

// IdentityFromContext returns the caller identity carried by ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}

	identity, _ := ctx.Value(ctxKeyIdentity).(*Identity)

	return identity
}

func bearerToken(header string) string {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(header[len(bearerPrefix):])
}

// claimString accepts string and numeric user ID claims.
func claimString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
