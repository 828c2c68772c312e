package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/credentials"
)

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
)

const tokenIssuer = "postgen"

// Config holds authentication configuration for the HTTP surface
type Config struct {
	APIKeys     []string      `yaml:"api_keys"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`
	RequireAuth bool          `yaml:"require_auth"`
	PublicPaths []string      `yaml:"public_paths"`
}

// AuthInfo identifies the caller of a request
type AuthInfo struct {
	Subject   string     `json:"subject"`
	Method    string     `json:"method"` // "api_key" or "jwt"
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Claims are the JWT claims issued to API callers
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates API keys and bearer tokens
type Authenticator struct {
	config *Config
	logger *logrus.Logger
}

type contextKey int

const authInfoKey contextKey = iota

// NewAuthenticator creates an authenticator. Health and docs paths are public
// unless PublicPaths says otherwise.
func NewAuthenticator(config *Config, logger *logrus.Logger) *Authenticator {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	if config.PublicPaths == nil {
		config.PublicPaths = []string{"/v1/health", "/docs"}
	}
	return &Authenticator{config: config, logger: logger}
}

// Enabled reports whether requests must carry credentials
func (a *Authenticator) Enabled() bool {
	return a.config.RequireAuth
}

// Authenticate accepts either a configured API key or a signed token
func (a *Authenticator) Authenticate(token string) (*AuthInfo, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if info, err := a.ValidateAPIKey(token); err == nil {
		return info, nil
	}
	if a.config.JWTSecret == "" {
		return nil, ErrInvalidToken
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	info := &AuthInfo{Subject: claims.Subject, Method: "jwt", Scopes: claims.Scopes}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = &claims.ExpiresAt.Time
	}
	return info, nil
}

// ValidateAPIKey compares in constant time against every configured key
func (a *Authenticator) ValidateAPIKey(apiKey string) (*AuthInfo, error) {
	for i, valid := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
			return &AuthInfo{
				Subject: fmt.Sprintf("api-key#%d", i+1),
				Method:  "api_key",
				Scopes:  []string{"posts:write"},
			}, nil
		}
	}
	return nil, ErrInvalidToken
}

// IssueToken signs a token for subject with the configured expiry
func (a *Authenticator) IssueToken(subject string, scopes []string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := &Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.JWTSecret))
}

// ValidateToken parses an HS256 token issued by IssueToken
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware rejects unauthenticated requests with 401
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.config.RequireAuth || a.isPublic(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractToken(r)
			info, err := a.Authenticate(token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"error":     err.Error(),
					"token":     credentials.Mask(token),
					"path":      r.URL.Path,
					"remote_ip": ClientIP(r),
				}).Warn("Authentication failed")
				writeError(w, http.StatusUnauthorized, "authentication_error", err.Error())
				return
			}

			a.logger.WithFields(logrus.Fields{
				"subject": info.Subject,
				"method":  info.Method,
				"path":    r.URL.Path,
			}).Debug("Authenticated")

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}

func (a *Authenticator) isPublic(path string) bool {
	for _, prefix := range a.config.PublicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ExtractToken reads a bearer token or an X-API-Key header
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}

// WithAuthInfo stores the caller identity on ctx
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

// GetAuthInfo returns the caller identity stored by the middleware
func GetAuthInfo(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// ClientIP prefers proxy headers over RemoteAddr
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":%q,"code":"%d"}}`, message, errType, status)
}
