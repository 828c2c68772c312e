package credentials

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/types"
)

// ErrEmptyPool is returned when no credentials are configured for a provider
var ErrEmptyPool = errors.New("credential pool is empty")

// Config holds per-provider pool configuration
type Config struct {
	Provider          string        `yaml:"provider"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	ResetInterval     time.Duration `yaml:"reset_interval"`
}

// Credential is one API secret with its usage window
type Credential struct {
	label       string
	secret      string
	active      bool
	count       int
	windowStart time.Time
	limit       int
}

// Label identifies the credential in logs without exposing it
func (c *Credential) Label() string {
	return c.label
}

// Secret returns the raw value. Only providers should call this.
func (c *Credential) Secret() string {
	return c.secret
}

// Masked returns a log-safe rendering of the secret
func (c *Credential) Masked() string {
	return Mask(c.secret)
}

func (c *Credential) String() string {
	return fmt.Sprintf("%s(%s)", c.label, c.Masked())
}

// Pool hands out credentials for one provider and tracks per-minute usage
type Pool struct {
	provider string
	config   *Config
	logger   *logrus.Logger

	credentials []*Credential
	mutex       sync.Mutex

	// Window reset ticker
	resetTicker *time.Ticker
	stopReset   chan bool
	stopped     bool
}

// NewPool creates a pool and starts the window reset goroutine.
// Empty secrets are ignored.
func NewPool(config *Config, secrets []string, logger *logrus.Logger) *Pool {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.ResetInterval <= 0 {
		config.ResetInterval = time.Minute
	}

	p := &Pool{
		provider:  config.Provider,
		config:    config,
		logger:    logger,
		stopReset: make(chan bool),
	}

	now := time.Now()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		p.credentials = append(p.credentials, &Credential{
			label:       fmt.Sprintf("%s#%d", config.Provider, len(p.credentials)+1),
			secret:      secret,
			active:      true,
			windowStart: now,
			limit:       config.RequestsPerMinute,
		})
	}

	p.startReset()

	logger.WithFields(logrus.Fields{
		"provider":    p.provider,
		"credentials": len(p.credentials),
		"rpm":         config.RequestsPerMinute,
	}).Info("Credential pool initialized")

	return p
}

// Provider returns the provider name this pool serves
func (p *Pool) Provider() string {
	return p.provider
}

// Len returns the number of configured credentials
func (p *Pool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.credentials)
}

// Acquire returns the first active credential below its cap. When every
// credential is capped or exhausted it returns the least-used one. It returns
// nil only when the pool is empty.
func (p *Pool) Acquire() *Credential {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	order := p.rotationLocked()
	if len(order) == 0 {
		return nil
	}
	return order[0]
}

// Rotation returns every credential in the order attempts should use them:
// usable credentials in configured order, then the rest by ascending use.
// The first element is always what Acquire would return.
func (p *Pool) Rotation() []*Credential {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.rotationLocked()
}

func (p *Pool) rotationLocked() []*Credential {
	usable := make([]*Credential, 0, len(p.credentials))
	rest := make([]*Credential, 0)
	for _, c := range p.credentials {
		if c.active && c.count < c.limit {
			usable = append(usable, c)
		} else {
			rest = append(rest, c)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].count < rest[j].count
	})

	if len(usable) == 0 && len(rest) > 0 {
		p.logger.WithFields(logrus.Fields{
			"provider":   p.provider,
			"credential": rest[0].label,
		}).Debug("All credentials capped, degrading to least-used")
	}

	return append(usable, rest...)
}

// RecordUse counts one attempt against the credential. It is called when an
// attempt begins, so failed attempts still consume quota.
func (p *Pool) RecordUse(c *Credential) {
	if c == nil {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	c.count++
	if c.count == c.limit {
		p.logger.WithFields(logrus.Fields{
			"provider":   p.provider,
			"credential": c.label,
			"masked":     c.Masked(),
			"limit":      c.limit,
		}).Debug("Credential reached per-minute cap")
	}
}

// MarkExhausted deactivates a credential until the next window reset
func (p *Pool) MarkExhausted(c *Credential) {
	if c == nil {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !c.active {
		return
	}
	c.active = false

	p.logger.WithFields(logrus.Fields{
		"provider":   p.provider,
		"credential": c.label,
		"masked":     c.Masked(),
	}).Warn("Credential marked exhausted")
}

// Reset zeroes every usage counter and reactivates exhausted credentials
func (p *Pool) Reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	reactivated := 0
	for _, c := range p.credentials {
		if !c.active {
			reactivated++
		}
		c.active = true
		c.count = 0
		c.windowStart = now
	}

	if reactivated > 0 {
		p.logger.WithFields(logrus.Fields{
			"provider":    p.provider,
			"reactivated": reactivated,
		}).Info("Credential window reset")
	}
}

// Stats returns a masked snapshot of every credential
func (p *Pool) Stats() []types.CredentialStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats := make([]types.CredentialStats, 0, len(p.credentials))
	for _, c := range p.credentials {
		stats = append(stats, types.CredentialStats{
			Label:       c.label,
			Masked:      c.Masked(),
			Active:      c.active,
			Used:        c.count,
			Limit:       c.limit,
			WindowStart: c.windowStart,
		})
	}
	return stats
}

// startReset starts the goroutine that resets usage windows
func (p *Pool) startReset() {
	p.resetTicker = time.NewTicker(p.config.ResetInterval)

	go func() {
		for {
			select {
			case <-p.resetTicker.C:
				p.Reset()
			case <-p.stopReset:
				return
			}
		}
	}()
}

// Stop stops the reset goroutine. Safe to call more than once.
func (p *Pool) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return
	}

	p.stopped = true
	if p.resetTicker != nil {
		p.resetTicker.Stop()
	}
	close(p.stopReset)
}

// Mask renders a secret as its first four characters followed by asterisks
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}
