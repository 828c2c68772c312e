package middleware

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/security"
)

// SecurityMiddlewareConfig holds configuration for the security chain
type SecurityMiddlewareConfig struct {
	Auth           *security.Config           `yaml:"auth"`
	RateLimit      *security.RateLimitConfig  `yaml:"rate_limit"`
	Validation     *security.ValidationConfig `yaml:"validation"`
	AllowedOrigins []string                   `yaml:"allowed_origins"`
}

// SecurityMiddleware combines authentication, client rate limiting and
// envelope validation
type SecurityMiddleware struct {
	auth      *security.Authenticator
	limiter   *security.ClientLimiter
	validator *security.InputValidator
	origins   []string
	logger    *logrus.Logger
}

// NewSecurityMiddleware creates the security chain. Missing sections disable
// their component, except validation which always runs with defaults.
func NewSecurityMiddleware(config *SecurityMiddlewareConfig, logger *logrus.Logger) (*SecurityMiddleware, error) {
	s := &SecurityMiddleware{origins: config.AllowedOrigins, logger: logger}

	if config.Auth != nil {
		s.auth = security.NewAuthenticator(config.Auth, logger)
	}
	if config.RateLimit != nil && config.RateLimit.Enabled {
		s.limiter = security.NewClientLimiter(config.RateLimit, logger)
	}

	validation := config.Validation
	if validation == nil {
		validation = &security.ValidationConfig{}
	}
	validator, err := security.NewInputValidator(validation, logger)
	if err != nil {
		return nil, err
	}
	s.validator = validator

	return s, nil
}

// Validator exposes the input validator for per-field checks in handlers
func (s *SecurityMiddleware) Validator() *security.InputValidator {
	return s.validator
}

// Authenticator returns the configured authenticator, or nil
func (s *SecurityMiddleware) Authenticator() *security.Authenticator {
	return s.auth
}

// Handler builds the chain: headers, CORS, auth, rate limit, validation
func (s *SecurityMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := s.validator.Middleware()(next)
		if s.limiter != nil {
			handler = s.limiter.Middleware()(handler)
		}
		if s.auth != nil {
			handler = s.auth.Middleware()(handler)
		}
		if len(s.origins) > 0 {
			handler = s.CORSMiddleware(s.origins)(handler)
		}
		return securityHeaders(handler)
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if !strings.HasPrefix(r.URL.Path, "/docs") {
			w.Header().Set("Content-Security-Policy", "default-src 'none'")
		}
		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware answers preflight requests for the allowed origins
func (s *SecurityMiddleware) CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Stop releases background goroutines
func (s *SecurityMiddleware) Stop() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Stats reports which components are active
func (s *SecurityMiddleware) Stats() map[string]bool {
	return map[string]bool{
		"authentication": s.auth != nil && s.auth.Enabled(),
		"rate_limiting":  s.limiter != nil,
		"cors":           len(s.origins) > 0,
	}
}
