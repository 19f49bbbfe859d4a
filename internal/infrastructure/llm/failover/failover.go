// Package failover spreads completions over an ordered list of LLM providers.
// Each provider is paced by its own limiter, retried on throttling, and
// parked for a cooldown window once its hard quota is exhausted.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
	"github.com/kirillkom/prism-answer/internal/infrastructure/resilience"
)

const (
	DefaultMinInterval   = time.Second
	DefaultQuotaCooldown = 5 * time.Minute
)

var (
	ErrNoProviders      = errors.New("no llm providers configured")
	ErrAllCoolingDown   = errors.New("all llm providers are cooling down")
	retryInPattern      = regexp.MustCompile(`retry in\s+(\d+(?:\.\d+)?)s`)
	retrySecondsPattern = regexp.MustCompile(`seconds:\s*(\d+)`)
	hardQuotaMarkers    = []string{
		"generaterequestsperday",
		"perdayperprojectpermodel",
		"free_tier_requests",
		"per day",
		"current quota",
	}
)

// Provider is one upstream completer in preference order.
type Provider struct {
	Name        string
	Completer   ports.Completer
	MinInterval time.Duration
}

type Options struct {
	QuotaCooldown time.Duration
	// Retry governs attempts against a single provider. Zero value means
	// resilience.ProviderConfig.
	Retry *resilience.Config
	// OnFailover is told whenever a provider is abandoned for the next one.
	OnFailover func(from, reason string)
}

type member struct {
	name          string
	completer     ports.Completer
	limiter       *rate.Limiter
	cooldownUntil time.Time
}

type Completer struct {
	members       []*member
	executor      *resilience.Executor
	quotaCooldown time.Duration
	onFailover    func(from, reason string)

	mu  sync.Mutex
	now func() time.Time
}

func New(providers []Provider, options Options) (*Completer, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	members := make([]*member, 0, len(providers))
	for _, p := range providers {
		if p.Completer == nil {
			return nil, fmt.Errorf("provider %q: completer is nil", p.Name)
		}
		interval := p.MinInterval
		if interval <= 0 {
			interval = DefaultMinInterval
		}
		members = append(members, &member{
			name:      p.Name,
			completer: p.Completer,
			limiter:   rate.NewLimiter(rate.Every(interval), 1),
		})
	}

	retry := resilience.ProviderConfig()
	if options.Retry != nil {
		retry = *options.Retry
	}
	cooldown := options.QuotaCooldown
	if cooldown <= 0 {
		cooldown = DefaultQuotaCooldown
	}
	return &Completer{
		members:       members,
		executor:      resilience.NewExecutor(retry),
		quotaCooldown: cooldown,
		onFailover:    options.OnFailover,
		now:           time.Now,
	}, nil
}

func (c *Completer) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	available := c.availableMembers()
	if len(available) == 0 {
		return "", domain.WrapError(domain.ErrTemporary, "llm complete", ErrAllCoolingDown)
	}

	var lastErr error
	for _, m := range available {
		out, err := c.completeWith(ctx, m, prompt, opts)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err

		reason := "error"
		if c.markQuotaExhausted(m, err) {
			reason = "quota_exhausted"
		} else if isRateLimited(err) {
			reason = "rate_limited"
		}
		slog.Warn("llm_provider_failed", "provider", m.name, "reason", reason, "error", err)
		if c.onFailover != nil {
			c.onFailover(m.name, reason)
		}
	}
	return "", domain.WrapError(domain.ErrTemporary, "llm complete", fmt.Errorf("all providers failed: %w", lastErr))
}

func (c *Completer) completeWith(ctx context.Context, m *member, prompt string, opts domain.CompletionOptions) (string, error) {
	var out string
	err := c.executor.Execute(ctx, "llm."+m.name, func(ctx context.Context) error {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		text, err := m.completer.Complete(ctx, prompt, opts)
		if err != nil {
			return err
		}
		out = text
		return nil
	}, classifyProviderError)
	return out, err
}

func (c *Completer) availableMembers() []*member {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]*member, 0, len(c.members))
	for _, m := range c.members {
		if now.Before(m.cooldownUntil) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *Completer) markQuotaExhausted(m *member, err error) bool {
	if !isQuotaExhausted(err) {
		return false
	}
	cooldown := c.quotaCooldown
	if hint := retryDelay(err); hint > 0 {
		cooldown = hint
	}

	c.mu.Lock()
	m.cooldownUntil = c.now().Add(cooldown)
	c.mu.Unlock()

	slog.Warn("llm_provider_cooldown", "provider", m.name, "cooldown_s", cooldown.Seconds())
	return true
}

// CoolingDown lists providers currently parked after quota exhaustion.
func (c *Completer) CoolingDown() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []string
	for _, m := range c.members {
		if now.Before(m.cooldownUntil) {
			out = append(out, m.name)
		}
	}
	return out
}

func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if isRateLimited(err) {
		if isQuotaExhausted(err) {
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false, RetryAfter: retryDelay(err)}
	}
	// Timeouts and other failures move straight to the next provider.
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRateLimited(err error) bool {
	if resilience.HTTPStatus(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

func isQuotaExhausted(err error) bool {
	if !isRateLimited(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range hardQuotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryDelay returns the largest wait the provider suggested in its error
// text, or zero.
func retryDelay(err error) time.Duration {
	msg := strings.ToLower(err.Error())
	var best float64
	for _, pattern := range []*regexp.Regexp{retryInPattern, retrySecondsPattern} {
		for _, match := range pattern.FindAllStringSubmatch(msg, -1) {
			if v, parseErr := strconv.ParseFloat(match[1], 64); parseErr == nil && v > best {
				best = v
			}
		}
	}
	return time.Duration(best * float64(time.Second))
}
