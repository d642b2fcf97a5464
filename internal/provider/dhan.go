package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/gex"
)

const (
	expiryListPath  = "/v2/optionchain/expirylist"
	optionChainPath = "/v2/optionchain"
)

type DhanOptions struct {
	BaseURL     string
	ClientID    string
	AccessToken string
	Timeout     time.Duration
	RetryCount  int
	RetryDelay  time.Duration
	// MinInterval spaces broker calls; zero disables the limiter.
	MinInterval time.Duration
	Breaker     config.BreakerConfig
}

// Dhan talks to the DhanHQ v2 option chain API.
type Dhan struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	accessToken string
	limiter     *rate.Limiter
	retryCount  int
	retryDelay  time.Duration
	breaker     *gobreaker.CircuitBreaker
	symbols     config.Symbols
	now         func() time.Time
	logger      *zap.Logger
}

var _ Provider = (*Dhan)(nil)

func NewDhan(opts DhanOptions, symbols config.Symbols, logger *zap.Logger) *Dhan {
	transport := &http.Transport{
		MaxIdleConns:    10,
		MaxConnsPerHost: 4,
		IdleConnTimeout: 90 * time.Second,
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	d := &Dhan{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		baseURL:     opts.BaseURL,
		clientID:    opts.ClientID,
		accessToken: opts.AccessToken,
		limiter:     rate.NewLimiter(limit, 1),
		retryCount:  opts.RetryCount,
		retryDelay:  opts.RetryDelay,
		symbols:     symbols,
		now:         time.Now,
		logger:      logger,
	}

	if opts.Breaker.Enabled {
		d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dhan",
			MaxRequests: uint32(max(opts.Breaker.HalfOpenRequests, 1)),
			Timeout:     time.Duration(opts.Breaker.OpenTimeoutSec) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(opts.Breaker.FailureThreshold)
			},
			// Caller cancellations and missing chains say nothing about broker health
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return d
}

func (d *Dhan) Name() string { return "dhan" }

type scripRequest struct {
	UnderlyingScrip int    `json:"UnderlyingScrip"`
	UnderlyingSeg   string `json:"UnderlyingSeg"`
	Expiry          string `json:"Expiry,omitempty"`
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Status  string          `json:"status"`
	Remarks json.RawMessage `json:"remarks,omitempty"`
}

// Expiries returns the listed expiries of symbol in broker order (ascending).
func (d *Dhan) Expiries(ctx context.Context, symbol string) ([]string, error) {
	sym, err := d.symbols.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	body, err := d.post(ctx, expiryListPath, scripRequest{UnderlyingScrip: sym.SecurityID, UnderlyingSeg: sym.Segment})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s expiries: %w", ErrUnavailable, sym.Name, err)
	}
	expiries, err := parseExpiryList(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, sym.Name, err)
	}
	return expiries, nil
}

// Chain fetches the expiry list, selects req.ExpiryIndex and fetches that chain.
func (d *Dhan) Chain(ctx context.Context, req Request) (*gex.RawChain, error) {
	sym, err := d.symbols.Lookup(req.Symbol)
	if err != nil {
		return nil, err
	}
	expiries, err := d.Expiries(ctx, sym.Name)
	if err != nil {
		return nil, err
	}
	expiry := expiryAt(expiries, req.ExpiryIndex)

	body, err := d.post(ctx, optionChainPath, scripRequest{
		UnderlyingScrip: sym.SecurityID,
		UnderlyingSeg:   sym.Segment,
		Expiry:          expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s chain %s: %w", ErrUnavailable, sym.Name, expiry, err)
	}

	records, lastPrice, err := parseChain(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s chain %s: %w", ErrUnavailable, sym.Name, expiry, err)
	}
	if lastPrice <= 0 {
		d.logger.Debug("no last price in chain, using reference price",
			zap.String("symbol", sym.Name),
			zap.Float64("reference", sym.ReferencePrice),
		)
		lastPrice = sym.ReferencePrice
	}

	d.logger.Debug("fetched chain",
		zap.String("symbol", sym.Name),
		zap.String("expiry", expiry),
		zap.Int("records", len(records)),
	)

	return &gex.RawChain{
		Symbol:          sym.Name,
		UnderlyingPrice: lastPrice,
		Expiry:          expiry,
		Expiries:        expiries,
		Records:         records,
		Source:          d.Name(),
		FetchedAt:       d.now(),
	}, nil
}

func (d *Dhan) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if d.breaker == nil {
		return d.postWithRetry(ctx, path, payload)
	}
	out, err := d.breaker.Execute(func() (interface{}, error) {
		return d.postWithRetry(ctx, path, payload)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (d *Dhan) postWithRetry(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	url := d.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= d.retryCount; attempt++ {
		if attempt > 0 {
			delay := d.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			d.logger.Debug("retrying request", zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("client-id", d.clientID)
		req.Header.Set("access-token", d.accessToken)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// expiryListShape extracts an expiry list from one known response layout.
type expiryListShape struct {
	name  string
	parse func(raw []byte) ([]string, bool)
}

var expiryListShapes = []expiryListShape{
	{"data array", func(raw []byte) ([]string, bool) {
		var env envelope
		if json.Unmarshal(raw, &env) != nil {
			return nil, false
		}
		var list []string
		return list, json.Unmarshal(env.Data, &list) == nil
	}},
	{"data.expiry_list", func(raw []byte) ([]string, bool) {
		var env struct {
			Data struct {
				ExpiryList []string `json:"expiry_list"`
			} `json:"data"`
		}
		if json.Unmarshal(raw, &env) != nil {
			return nil, false
		}
		return env.Data.ExpiryList, env.Data.ExpiryList != nil
	}},
	{"top-level array", func(raw []byte) ([]string, bool) {
		var list []string
		return list, json.Unmarshal(raw, &list) == nil
	}},
}

func parseExpiryList(raw []byte) ([]string, error) {
	for _, shape := range expiryListShapes {
		if list, ok := shape.parse(raw); ok {
			if len(list) == 0 {
				return nil, ErrNoExpiries
			}
			return list, nil
		}
	}
	return nil, fmt.Errorf("unrecognised expiry list response: %s", truncate(raw, 120))
}

// parseChain flattens a data.oc strike map (or a plain record array) into
// raw records and returns data.last_price when present.
func parseChain(raw []byte) ([]gex.RawRecord, float64, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, 0, ErrNotFound
	}

	dec := func(b []byte, v any) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}

	var records []gex.RawRecord
	if err := dec(env.Data, &records); err == nil {
		return records, 0, nil
	}

	var data struct {
		LastPrice float64                   `json:"last_price"`
		OC        map[string]map[string]any `json:"oc"`
	}
	if err := dec(env.Data, &data); err != nil {
		return nil, 0, fmt.Errorf("decoding option chain: %w", err)
	}
	if len(data.OC) == 0 {
		return nil, data.LastPrice, ErrNotFound
	}

	strikes := make([]string, 0, len(data.OC))
	for k := range data.OC {
		strikes = append(strikes, k)
	}
	sort.Strings(strikes)

	records = make([]gex.RawRecord, 0, len(strikes))
	for _, k := range strikes {
		rec := gex.RawRecord{"strike": k}
		for side, v := range data.OC[k] {
			rec[side] = v
		}
		records = append(records, rec)
	}
	return records, data.LastPrice, nil
}
