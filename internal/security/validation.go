package security

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/types"
)

var (
	ErrPromptTooLong   = errors.New("prompt exceeds maximum length")
	ErrBlockedContent  = errors.New("prompt contains blocked content")
	ErrInvalidEncoding = errors.New("input is not valid UTF-8")
	ErrTooManySources  = errors.New("too many scraped sources")
	ErrImageTooLarge   = errors.New("image exceeds maximum size")
)

// ValidationConfig bounds what callers may submit
type ValidationConfig struct {
	MaxRequestSize  int64    `yaml:"max_request_size"`
	MaxPromptLength int      `yaml:"max_prompt_length"`
	MaxSources      int      `yaml:"max_sources"`
	MaxImageBytes   int      `yaml:"max_image_bytes"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
	ContentTypes    []string `yaml:"allowed_content_types"`
}

// InputValidator checks request envelopes and the text that reaches the pipeline
type InputValidator struct {
	config  *ValidationConfig
	logger  *logrus.Logger
	blocked []*regexp.Regexp
}

// NewInputValidator compiles the blocked patterns and fills zero limits
func NewInputValidator(config *ValidationConfig, logger *logrus.Logger) (*InputValidator, error) {
	if config.MaxRequestSize == 0 {
		config.MaxRequestSize = 16 * 1024 * 1024
	}
	if config.MaxPromptLength == 0 {
		config.MaxPromptLength = 4000
	}
	if config.MaxSources == 0 {
		config.MaxSources = 10
	}
	if config.MaxImageBytes == 0 {
		config.MaxImageBytes = 10 * 1024 * 1024
	}
	if len(config.ContentTypes) == 0 {
		config.ContentTypes = []string{"application/json"}
	}

	v := &InputValidator{config: config, logger: logger}
	for _, pattern := range config.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern '%s': %w", pattern, err)
		}
		v.blocked = append(v.blocked, re)
	}
	return v, nil
}

// ValidatePrompt rejects prompts that are too long, malformed, or blocked
func (v *InputValidator) ValidatePrompt(prompt string) error {
	if !utf8.ValidString(prompt) {
		return ErrInvalidEncoding
	}
	if n := utf8.RuneCountInString(prompt); n > v.config.MaxPromptLength {
		return fmt.Errorf("%w: %d > %d", ErrPromptTooLong, n, v.config.MaxPromptLength)
	}
	for _, re := range v.blocked {
		if re.MatchString(prompt) {
			v.logger.WithField("pattern", re.String()).Warn("Prompt matched blocked pattern")
			return ErrBlockedContent
		}
	}
	return nil
}

// ValidateImage checks size and declared type of an inline image
func (v *InputValidator) ValidateImage(image *types.ImagePayload) error {
	if image == nil {
		return nil
	}
	if len(image.Data) > v.config.MaxImageBytes {
		return fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(image.Data))
	}
	if image.MIMEType != "" && !strings.HasPrefix(image.MIMEType, "image/") {
		return fmt.Errorf("unsupported image type %q", image.MIMEType)
	}
	return nil
}

// ValidateSources limits how many scraped pages one request may carry
func (v *InputValidator) ValidateSources(sources []types.ScrapedSource) error {
	if len(sources) > v.config.MaxSources {
		return fmt.Errorf("%w: %d > %d", ErrTooManySources, len(sources), v.config.MaxSources)
	}
	for _, src := range sources {
		if !utf8.ValidString(src.Content) {
			return fmt.Errorf("source %s: %w", src.URL, ErrInvalidEncoding)
		}
	}
	return nil
}

// SanitizeInput drops NUL and control characters except newline and tab
func (v *InputValidator) SanitizeInput(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Middleware enforces the body size limit and JSON content type on writes
func (v *InputValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > v.config.MaxRequestSize {
				writeError(w, http.StatusRequestEntityTooLarge, "validation_error",
					fmt.Sprintf("request size %d exceeds maximum %d", r.ContentLength, v.config.MaxRequestSize))
				return
			}
			if r.Method == http.MethodPost && !v.allowedContentType(r.Header.Get("Content-Type")) {
				writeError(w, http.StatusUnsupportedMediaType, "validation_error",
					fmt.Sprintf("content type %q not allowed", r.Header.Get("Content-Type")))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, v.config.MaxRequestSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (v *InputValidator) allowedContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	for _, allowed := range v.config.ContentTypes {
		if strings.EqualFold(mediaType, allowed) {
			return true
		}
	}
	return false
}
