package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// HTTPOptions configures an HTTPSource. URL and JSONPath may contain the
// placeholders {base} and {quote}.
type HTTPOptions struct {
	URL        string
	JSONPath   string
	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client
}

// HTTPSource reads the spot price from a JSON ticker endpoint.
type HTTPSource struct {
	url        string
	path       string
	client     *http.Client
	maxRetries int
	log        *slog.Logger
}

// NewHTTPSource validates opts and builds a ticker-backed rate source.
func NewHTTPSource(opts HTTPOptions, log *slog.Logger) (*HTTPSource, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("rates.url is required")
	}
	path := strings.TrimSpace(opts.JSONPath)
	if path == "" {
		return nil, errors.New("rates.json_path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client := opts.Client
	if client == nil {
		client = sharedHTTPClient(opts.Timeout)
	}

	return &HTTPSource{
		url:        url,
		path:       path,
		client:     client,
		maxRetries: max(opts.MaxRetries, 0),
		log:        log.With("component", "rates.http"),
	}, nil
}

// CurrentRate fetches the ticker and extracts the configured JSON field.
func (s *HTTPSource) CurrentRate(ctx context.Context, base string, quote string) (decimal.Decimal, error) {
	expand := strings.NewReplacer("{base}", base, "{quote}", quote)
	url := expand.Replace(s.url)
	path := expand.Replace(s.path)

	resp, err := doWithRetry(ctx, s.client, s.maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, s.log)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return decimal.Zero, NewError(ErrorNetwork, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return decimal.Zero, NewError(ErrorUnsupported, fmt.Sprintf("%s/%s", base, quote))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return decimal.Zero, NewError(ErrorUpstream, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	rate, err := extractRate(body, path)
	if err != nil {
		return decimal.Zero, err
	}

	s.log.Debug("Fetched exchange rate", "base", base, "quote", quote, "rate", rate)
	return rate, nil
}

// extractRate reads a positive decimal at path; the field may be a JSON
// string or number.
func extractRate(body []byte, path string) (decimal.Decimal, error) {
	if !gjson.ValidBytes(body) {
		return decimal.Zero, NewError(ErrorBadResponse, "response is not valid JSON")
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return decimal.Zero, NewError(ErrorBadResponse, fmt.Sprintf("field %q not found", path))
	}

	var raw string
	switch result.Type {
	case gjson.String:
		raw = result.Str
	case gjson.Number:
		raw = result.Raw
	default:
		return decimal.Zero, NewError(ErrorBadResponse, fmt.Sprintf("field %q is %s, want number", path, result.Type))
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, NewError(ErrorBadResponse, fmt.Sprintf("field %q: %v", path, err))
	}
	if !rate.IsPositive() {
		return decimal.Zero, NewError(ErrorInvalidRate, rate.String())
	}

	return rate, nil
}

// sharedHTTPClient returns a pooled client tuned for small ticker requests.
func sharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
