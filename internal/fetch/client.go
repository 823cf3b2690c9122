// Package fetch performs single-object GETs against the public archive store,
// classifying every outcome as success, not-found, or transient failure.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cryptohist/visioncrawl/internal/faults"
)

// Config tunes the HTTP transport, the request rate toward the store, and the
// circuit breaker protecting it.
type Config struct {
	RequestTimeout      time.Duration // Per-request timeout
	DialTimeout         time.Duration // Connection dial timeout
	MaxIdleConns        int           // Maximum idle connections total
	MaxIdleConnsPerHost int           // Maximum idle connections per host
	IdleConnTimeout     time.Duration // How long idle connections are kept
	RequestsPerSecond   float64       // Steady-state request rate
	Burst               int           // Rate limiter burst allowance
	BreakerFailures     uint32        // Consecutive failures that open the breaker
	BreakerCooldown     time.Duration // How long the breaker stays open
}

// DefaultConfig returns settings suited to bulk archive downloads.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      5 * time.Minute,
		DialTimeout:         10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		RequestsPerSecond:   10,
		Burst:               20,
		BreakerFailures:     5,
		BreakerCooldown:     30 * time.Second,
	}
}

// Client is a pooled HTTP client for the archive store. Safe for concurrent
// use by all pipeline workers.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New builds a client from cfg.
func New(cfg Config) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "archive-store",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A 404 is an answer from the store, not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || faults.IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: breaker,
	}
}

// Fetch GETs url and streams the body to dst. HTTP 404 yields a
// faults.KindNotFound error; transport failures and any other non-2xx status
// yield faults.KindTransient. Nothing is written to dst unless the status was
// successful.
func (c *Client) Fetch(ctx context.Context, url string, dst io.Writer) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return faults.Transient("fetch.get", url, err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.get(ctx, url, dst)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return faults.Transient("fetch.get", url, err)
	}
	return err
}

func (c *Client) get(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return faults.Transient("fetch.get", url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return faults.Transient("fetch.get", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return faults.NotFound("fetch.get", url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return faults.Transient("fetch.get", url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return faults.Transient("fetch.get", url, err)
	}
	return nil
}
