package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

// Error message constants for consistent error handling
const (
	errBaseURLRequired   = "reputation base URL is required"
	errEncodeFailed      = "encode request failed: %w"
	errBuildRequest      = "build request failed: %w"
	errRequestFailed     = "request failed: %w"
	errUnexpectedStatus  = "unexpected status %d"
	errReadFailed        = "read body failed: %w"
	errInvalidJSON       = "response is not valid JSON"
	errMissingCategory   = "response has no string category"
	errUnknownCategory   = "response has unrecognised category %q"
	errClassifierPanic   = "classifier panic: %v"
	checkURLPath         = "/check-url"
	maxResponseBodyBytes = 64 << 10
)

// Doer is the subset of *http.Client the gateway needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the reputation lookup gateway.
type Options struct {
	// required parameters
	BaseURL string
	Timeout time.Duration
	// options to inject for testing purposes
	Client Doer
	Clock  clock.Clock
	Logger log.Logger
}

// Gateway classifies URLs through the remote reputation service. It never
// fails: every problem collapses into an unknown outcome.
type Gateway struct {
	endpoint string
	timeout  time.Duration
	client   Doer
	clock    clock.Clock
	logger   log.Logger
}

// New creates a Gateway. The lookup timeout defaults to 5 seconds.
func New(opts Options) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New(errBaseURLRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Gateway{
		endpoint: base + checkURLPath,
		timeout:  opts.Timeout,
		client:   opts.Client,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}, nil
}

// ensureContextDeadline applies the lookup timeout when ctx has no deadline.
func (g *Gateway) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, g.timeout)
	}
	return ctx, nil
}

// Classify asks the reputation service about url. One request per call, no
// retry, no caching.
func (g *Gateway) Classify(ctx context.Context, url string) (out domain.ClassificationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf(errClassifierPanic, r)
			g.logger.Error(map[string]any{"url": url, "error": err.Error()}, "Reputation lookup panicked")
			out = domain.UnknownOutcome(url, g.clock.Now(), err)
		}
	}()

	ctx, cancel := g.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	category, err := g.lookup(ctx, url)
	now := g.clock.Now()
	if err != nil {
		g.logger.Warn(map[string]any{
			"url":      url,
			"endpoint": g.endpoint,
			"error":    err.Error(),
		}, "Reputation lookup failed, treating as unknown")
		return domain.UnknownOutcome(url, now, err)
	}
	return domain.NewOutcome(url, category, now)
}

func (g *Gateway) lookup(ctx context.Context, url string) (domain.Category, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return "", fmt.Errorf(errEncodeFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf(errBuildRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf(errRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(errUnexpectedStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", fmt.Errorf(errReadFailed, err)
	}
	return parseCategory(raw)
}

// parseCategory extracts the category field from a lookup response.
func parseCategory(raw []byte) (domain.Category, error) {
	if !gjson.ValidBytes(raw) {
		return "", errors.New(errInvalidJSON)
	}
	field := gjson.GetBytes(raw, "category")
	if field.Type != gjson.String {
		return "", errors.New(errMissingCategory)
	}
	category := domain.Category(field.String())
	if !category.IsValid() {
		return "", fmt.Errorf(errUnknownCategory, field.String())
	}
	return category, nil
}
