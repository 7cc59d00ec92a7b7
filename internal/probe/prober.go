package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/utils"
	"github.com/MrSnakeDoc/beacon/internal/version"
)

const (
	// DefaultTimeout bounds a single probe end to end.
	DefaultTimeout = 5 * time.Second
	// AcceptHTML is sent on every probe so dashboards answer with their HTML page.
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	// maxBodyBytes caps how much of the body is sniffed for an HTML marker.
	maxBodyBytes = 1 << 20
)

// Outcome classifies a probe for logs and metrics. Only OutcomeHTML is reachable.
type Outcome string

const (
	OutcomeHTML           Outcome = "html"
	OutcomeNotHTML        Outcome = "not_html"
	OutcomeBadStatus      Outcome = "bad_status"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeNetwork        Outcome = "network"
	OutcomeInvalidRequest Outcome = "invalid_request"
)

// Result is the detailed view of a single probe.
type Result struct {
	Reachable  bool
	Outcome    Outcome
	StatusCode int // 0 when no response was received
	Latency    time.Duration
	Err        error
}

// Observer receives one call per probe (metrics hook).
type Observer interface {
	ObserveProbe(outcome string, elapsed time.Duration)
}

// Prober checks whether a host serves an HTML page.
type Prober struct {
	client   *http.Client
	timeout  time.Duration
	logger   logger.Logger
	observer Observer
}

// Option configures a Prober.
type Option func(*Prober)

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Prober) { p.observer = o }
}

// WithClient replaces the HTTP client (tests).
func WithClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// New builds a Prober. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration, log logger.Logger, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &Prober{
		timeout: timeout,
		logger:  log,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe reports whether http://address:port/path answers 2xx with an HTML page.
// Every failure (timeout, network, status, non-HTML body) collapses to false.
func (p *Prober) Probe(ctx context.Context, address string, port int, path string) bool {
	return p.Check(ctx, address, port, path).Reachable
}

// Check runs one probe and returns the full classification.
func (p *Prober) Check(ctx context.Context, address string, port int, path string) Result {
	start := time.Now()
	res := p.check(ctx, address, port, path)
	res.Latency = time.Since(start)

	if p.observer != nil {
		p.observer.ObserveProbe(string(res.Outcome), res.Latency)
	}
	if p.logger != nil {
		fields := []logger.Field{
			logger.String("address", address),
			logger.Int("port", port),
			logger.String("path", path),
			logger.String("outcome", string(res.Outcome)),
			logger.Int("status", res.StatusCode),
			logger.Duration("latency", res.Latency),
		}
		if res.Err != nil {
			fields = append(fields, logger.Error(res.Err))
		}
		p.logger.Debug("probe finished", fields...)
	}
	return res
}

func (p *Prober) check(ctx context.Context, address string, port int, path string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := TargetURL(address, port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return Result{Outcome: OutcomeInvalidRequest, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", AcceptHTML)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Outcome: OutcomeTimeout, Err: err}
		}
		return Result{Outcome: OutcomeNetwork, Err: err}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Outcome: OutcomeBadStatus, StatusCode: resp.StatusCode}
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return Result{Reachable: true, Outcome: OutcomeHTML, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Outcome: OutcomeTimeout, StatusCode: resp.StatusCode, Err: err}
		}
		return Result{Outcome: OutcomeNetwork, StatusCode: resp.StatusCode, Err: err}
	}
	if LooksLikeHTML(body) {
		return Result{Reachable: true, Outcome: OutcomeHTML, StatusCode: resp.StatusCode}
	}
	return Result{Outcome: OutcomeNotHTML, StatusCode: resp.StatusCode}
}

// LooksLikeHTML reports whether body contains a doctype or an opening html tag.
func LooksLikeHTML(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("<!doctype html")) || bytes.Contains(lower, []byte("<html"))
}

// TargetURL builds http://address:port/path. IPv6 literals are bracketed and
// a path missing its leading slash gets one.
func TargetURL(address string, port int, path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(address, strconv.Itoa(port)) + path
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
