package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storefront/speedaudit/auditor/internal/registry"
)

// drainLimit caps how much of a storefront page is read before closing.
const drainLimit = 64 << 10

// Result is the liveness verdict for one store.
type Result struct {
	StoreID  string
	Hostname string

	// HTTPStatus is the final status after redirects; 0 when no response
	// was received.
	HTTPStatus int

	// Live is true iff HTTPStatus == 200.
	Live bool

	// Err is set when the request itself failed (DNS, TLS, refused, timeout).
	Err error

	// Cert describes the leaf certificate of the final response; nil when no
	// TLS response was received.
	Cert *CertStatus

	Duration time.Duration
}

// Config tunes a Prober.
type Config struct {
	// Timeout bounds one probe. Zero means no timeout.
	Timeout time.Duration

	// Concurrency caps in-flight probes. Zero starts one goroutine per store.
	Concurrency int

	UserAgent          string
	InsecureSkipVerify bool
}

// Prober checks storefront home pages.
type Prober struct {
	cfg       Config
	newClient func() *http.Client // injectable for tests
}

// New returns a Prober that builds a fresh client for every request.
func New(cfg Config) *Prober {
	p := &Prober{cfg: cfg}
	p.newClient = p.buildClient
	return p
}

// CheckAll probes every store concurrently and returns once all probes have
// finished. results[i] always belongs to stores[i]; a failing store never
// affects its siblings.
func (p *Prober) CheckAll(ctx context.Context, stores []registry.Store) []Result {
	results := make([]Result, len(stores))

	var g errgroup.Group
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}
	for i, st := range stores {
		g.Go(func() error {
			results[i] = p.Check(ctx, st)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures live in Result.Err

	return results
}

// Check issues GET https://{hostname} and records the status code.
func (p *Prober) Check(ctx context.Context, st registry.Store) Result {
	res := Result{StoreID: st.ID, Hostname: st.Hostname}
	slog.Debug("probe: checking", "host", st.Hostname)

	client := p.newClient()
	defer client.CloseIdleConnections()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+st.Hostname, nil)
	if err != nil {
		res.Err = fmt.Errorf("probe %q: build request: %w", st.Hostname, err)
		return res
	}

	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("probe %q: %w", st.Hostname, err)
		slog.Warn("probe: request failed", "host", st.Hostname, "err", err)
		return res
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	resp.Body.Close()

	res.HTTPStatus = resp.StatusCode
	res.Live = resp.StatusCode == http.StatusOK
	res.Cert = inspectCert(resp.TLS, time.Now())
	if res.Cert != nil && res.Cert.State != CertValid {
		slog.Warn("probe: certificate not valid", "host", st.Hostname, "state", res.Cert.State,
			"not_after", res.Cert.NotAfter, "days_left", res.Cert.DaysLeft)
	}
	if !res.Live {
		slog.Info("probe: store not live", "host", st.Hostname, "status", resp.StatusCode)
	}
	return res
}

// Partition splits results into live stores and not-live hostnames, keeping
// the order of results. It is the only place the not-live list grows.
func Partition(results []Result) (live []Result, notLive []string) {
	for _, r := range results {
		if r.Live {
			live = append(live, r)
			continue
		}
		notLive = append(notLive, r.Hostname)
	}
	slog.Info("probe: liveness complete", "live", len(live), "not_live", len(notLive))
	return live, notLive
}

// userAgentRoundTripper stamps the configured User-Agent on every request.
type userAgentRoundTripper struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// buildClient returns a client with its own transport so no connection is
// shared between probes.
func (p *Prober) buildClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: p.cfg.InsecureSkipVerify, //nolint:gosec // user-configured
		},
		DisableKeepAlives: true,
	}
	return &http.Client{
		Transport: &userAgentRoundTripper{base: transport, userAgent: p.cfg.UserAgent},
		Timeout:   p.cfg.Timeout,
	}
}
