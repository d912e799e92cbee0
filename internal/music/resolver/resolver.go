// Package resolver looks tracks up through the node's HTTP loader.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/keshon/lavaplay/pkg/retrylimit"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

type Config struct {
	BaseURL  string
	Password string
	Timeout  time.Duration

	// Retry overrides retrylimit.DefaultRetryConfig.
	Retry *retrylimit.RetryConfig
}

// Resolver calls GET {BaseURL}/loadtracks?identifier=<query>.
type Resolver struct {
	baseURL  string
	password string
	http     *http.Client
	limiter  *retrylimit.AdaptiveLimiter
	retry    retrylimit.RetryConfig
	log      zerolog.Logger
}

// StatusError is a non-2xx answer from the loader.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("loadtracks: http %d", e.Code)
	}
	return fmt.Sprintf("loadtracks: http %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

// loadResult is the object form of a loader answer. Older nodes answer with
// a bare array of descriptors instead.
type loadResult struct {
	LoadType string             `json:"loadType"`
	Tracks   []track.Descriptor `json:"tracks"`
}

func New(cfg Config, log zerolog.Logger) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	log = log.With().Str("component", "resolver").Logger()
	retry := retrylimit.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	retry.Logger = log

	return &Resolver{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		limiter:  retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		retry:    retry,
		log:      log,
	}
}

// Resolve returns the raw descriptors for query. An empty result is not an
// error.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]track.Descriptor, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	endpoint := r.baseURL + "/loadtracks?identifier=" + url.QueryEscape(query)

	var body []byte
	err := retrylimit.WithRetryConfig(ctx, func() error {
		b, err := r.fetch(ctx, endpoint)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, r.limiter, r.retry)
	if err != nil {
		return nil, err
	}

	descriptors, err := decode(body)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("query", query).Int("tracks", len(descriptors)).Msg("tracks resolved")
	return descriptors, nil
}

func (r *Resolver) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retrylimit.Fatal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", r.password)
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loadtracks: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read loadtracks body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(bytes.TrimSpace(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		statusErr := &StatusError{Code: resp.StatusCode, Body: msg}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, retrylimit.Fatal(statusErr)
	}
	return body, nil
}

func decode(body []byte) ([]track.Descriptor, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("decode loadtracks: empty body")
	}

	if body[0] == '[' {
		var descriptors []track.Descriptor
		if err := json.Unmarshal(body, &descriptors); err != nil {
			return nil, fmt.Errorf("decode loadtracks: %w", err)
		}
		return descriptors, nil
	}

	var res loadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode loadtracks: %w", err)
	}
	if res.LoadType == "LOAD_FAILED" {
		return nil, fmt.Errorf("loadtracks: load failed")
	}
	return res.Tracks, nil
}
