package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storefront/speedaudit/auditor/internal/probe"
)

const (
	// maxBody bounds a successful response; full Lighthouse reports run to a
	// few megabytes.
	maxBody = 32 << 20

	// maxErrBody bounds the single read of a failed response.
	maxErrBody = 4 << 10
)

// Per-store failure kinds. They are wrapped, so match with errors.Is.
var (
	ErrStatus       = errors.New("pagespeed: unexpected status")
	ErrDecode       = errors.New("pagespeed: invalid response")
	ErrMissingScore = errors.New("pagespeed: performance score missing")
)

// Outcome is the scoring result for one store. Err == nil means the score is
// present; otherwise the store is skipped downstream.
type Outcome struct {
	StoreID  string
	Hostname string
	Score    float64
	Err      error
}

// Present reports whether the outcome carries a score.
func (o Outcome) Present() bool { return o.Err == nil }

// Config configures a Client.
type Config struct {
	Endpoint string
	Key      string
	Strategy string
	Category string

	// Timeout bounds one API call. Zero means no timeout.
	Timeout time.Duration

	// Concurrency caps in-flight calls. Zero starts one goroutine per store.
	Concurrency int
}

// Client calls the PageSpeed Insights runPagespeed API.
type Client struct {
	cfg       Config
	newClient func() *http.Client // injectable for tests
}

// New returns a Client that builds a fresh http.Client per call.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg}
	c.newClient = func() *http.Client {
		return &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, DisableKeepAlives: true},
			Timeout:   cfg.Timeout,
		}
	}
	return c
}

// psiResponse is the subset of the runPagespeed payload we read.
type psiResponse struct {
	LighthouseResult *struct {
		Categories struct {
			Performance *struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

// psiError is the Google API error envelope.
type psiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ScoreAll scores every live store concurrently and returns once all calls
// have finished. outcomes[i] always belongs to live[i].
func (c *Client) ScoreAll(ctx context.Context, live []probe.Result) []Outcome {
	outcomes := make([]Outcome, len(live))

	var g errgroup.Group
	if c.cfg.Concurrency > 0 {
		g.SetLimit(c.cfg.Concurrency)
	}
	for i, st := range live {
		g.Go(func() error {
			out := Outcome{StoreID: st.StoreID, Hostname: st.Hostname}
			out.Score, out.Err = c.Score(ctx, st.Hostname)
			if out.Err != nil {
				slog.Warn("pagespeed: score failed", "host", st.Hostname, "err", out.Err)
			} else {
				slog.Info("pagespeed: scored", "host", st.Hostname,
					"score", out.Score, "rating", Rate(out.Score))
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures live in Outcome.Err

	return outcomes
}

// Score returns the performance score of https://{hostname} on [0,100].
func (c *Client) Score(ctx context.Context, hostname string) (float64, error) {
	slog.Debug("pagespeed: requesting", "host", hostname)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(hostname), nil)
	if err != nil {
		return 0, fmt.Errorf("pagespeed %q: build request: %w", hostname, err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.newClient()
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pagespeed %q: http get: %w", hostname, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(hostname, resp)
	}

	var body psiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w for %q: %v", ErrDecode, hostname, err)
	}
	if body.LighthouseResult == nil ||
		body.LighthouseResult.Categories.Performance == nil ||
		body.LighthouseResult.Categories.Performance.Score == nil {
		return 0, fmt.Errorf("%w for %q", ErrMissingScore, hostname)
	}

	score, err := normalize(*body.LighthouseResult.Categories.Performance.Score)
	if err != nil {
		return 0, fmt.Errorf("%w for %q: %v", ErrDecode, hostname, err)
	}
	return score, nil
}

// requestURL builds the runPagespeed query for hostname.
func (c *Client) requestURL(hostname string) string {
	q := url.Values{}
	q.Set("url", "https://"+hostname)
	q.Set("category", c.cfg.Category)
	q.Set("strategy", c.cfg.Strategy)
	q.Set("key", c.cfg.Key)
	return c.cfg.Endpoint + "?" + q.Encode()
}

// statusError reads the failed response body exactly once, bounded, and
// folds the API's error message into the returned error when it has one.
func statusError(hostname string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))

	var env psiError
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		return fmt.Errorf("%w %d for %q: %s", ErrStatus, resp.StatusCode, hostname, env.Error.Message)
	}
	return fmt.Errorf("%w %d for %q", ErrStatus, resp.StatusCode, hostname)
}
