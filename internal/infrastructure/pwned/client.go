package pwned

import (
	"bufio"
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/aquamonitor/internal/reliability/circuitbreaker"
	"github.com/yourorg/aquamonitor/internal/reliability/retry"
)

// RangeCache caches range responses keyed by hash prefix. Satisfied by the
// redis infrastructure client; may be nil to disable caching.
type RangeCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Client queries the Pwned Passwords range API using k-anonymity: only the
// first five hex characters of the SHA-1 ever leave the process.
type Client struct {
	baseURL string
	http    *http.Client
	cache   RangeCache
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	logger  *slog.Logger
}

const cacheTTL = 12 * time.Hour

// NewClient creates a breach-check client against the given base URL
func NewClient(baseURL string, timeout time.Duration, cache RangeCache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 2
	retryCfg.MaxBackoff = time.Second

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		breaker: circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		retry:   retryCfg,
		logger:  logger,
	}
	c.breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("breach check circuit state changed",
			slog.Int("from", int(from)),
			slog.Int("to", int(to)),
		)
	})
	return c
}

// IsPasswordPwned reports whether the plaintext appears in the breach corpus.
// A transport or protocol failure is returned as an error; callers fail
// closed and reject the password change.
func (c *Client) IsPasswordPwned(ctx context.Context, plaintext string) (bool, error) {
	sum := sha1.Sum([]byte(plaintext))
	digest := strings.ToUpper(fmt.Sprintf("%x", sum))
	prefix, suffix := digest[:5], digest[5:]

	body, err := c.rangeBody(ctx, prefix)
	if err != nil {
		return false, err
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		candidate, _, found := strings.Cut(line, ":")
		if found && strings.EqualFold(candidate, suffix) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to scan range response: %w", err)
	}
	return false, nil
}

func (c *Client) rangeBody(ctx context.Context, prefix string) (string, error) {
	cacheKey := "pwned:range:" + prefix
	if c.cache != nil {
		if body, err := c.cache.Get(ctx, cacheKey); err == nil {
			return body, nil
		}
	}

	// On repeated upstream failure the breaker fast-fails; callers still
	// treat that error as a rejection.
	if !c.breaker.AllowRequest() {
		return "", fmt.Errorf("breach check circuit open")
	}

	body, err := retry.Do(ctx, c.retry, c.logger, "pwned_range", func(ctx context.Context) (string, error) {
		return c.fetchRange(ctx, prefix)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return "", err
	}
	c.breaker.RecordSuccess()

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body, cacheTTL); err != nil {
			c.logger.Warn("failed to cache pwned range", slog.String("error", err.Error()))
		}
	}
	return body, nil
}

func (c *Client) fetchRange(ctx context.Context, prefix string) (string, error) {
	url := c.baseURL + "/range/" + prefix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("breach check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("breach check returned status %d", resp.StatusCode)
	}

	var sb strings.Builder
	buf := bufio.NewScanner(resp.Body)
	for buf.Scan() {
		sb.WriteString(buf.Text())
		sb.WriteByte('\n')
	}
	if err := buf.Err(); err != nil {
		return "", fmt.Errorf("failed to read range response: %w", err)
	}
	return sb.String(), nil
}
