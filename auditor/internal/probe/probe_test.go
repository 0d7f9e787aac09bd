package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront/speedaudit/auditor/internal/registry"
)

// tlsStore starts a TLS server answering with status and returns it with a
// store pointing at it.
func tlsStore(t *testing.T, id string, status int) (*httptest.Server, registry.Store) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(srv.Close)
	return srv, registry.Store{ID: id, Hostname: strings.TrimPrefix(srv.URL, "https://")}
}

// testProber returns a Prober whose clients trust httptest certificates.
func testProber(srv *httptest.Server, cfg Config) *Prober {
	p := New(cfg)
	p.newClient = srv.Client
	return p
}

func TestCheck_Live(t *testing.T) {
	srv, st := tlsStore(t, "a", http.StatusOK)
	res := testProber(srv, Config{}).Check(context.Background(), st)

	if !res.Live {
		t.Errorf("Live = false, want true (status %d, err %v)", res.HTTPStatus, res.Err)
	}
	if res.HTTPStatus != 200 {
		t.Errorf("HTTPStatus = %d, want 200", res.HTTPStatus)
	}
	if res.StoreID != "a" || res.Hostname != st.Hostname {
		t.Errorf("result lost its store association: %+v", res)
	}
	if res.Cert == nil || res.Cert.State != CertValid {
		t.Errorf("Cert = %+v, want a valid certificate status", res.Cert)
	}
}

func TestCheck_NonOKStatusesAreNotLive(t *testing.T) {
	for _, status := range []int{201, 204, 301, 404, 500, 503} {
		srv, st := tlsStore(t, "x", status)
		// Do not follow redirects so the 301 itself is observed.
		p := New(Config{})
		p.newClient = func() *http.Client {
			c := srv.Client()
			c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
			return c
		}
		res := p.Check(context.Background(), st)
		if res.Live {
			t.Errorf("status %d: Live = true, want false", status)
		}
		if res.HTTPStatus != status {
			t.Errorf("status %d: HTTPStatus = %d", status, res.HTTPStatus)
		}
	}
}

func TestCheck_ConnectFailure(t *testing.T) {
	srv, _ := tlsStore(t, "a", http.StatusOK)
	res := testProber(srv, Config{}).Check(context.Background(), registry.Store{ID: "c", Hostname: "127.0.0.1:1"})

	if res.Live {
		t.Error("unreachable host must not be live")
	}
	if res.Err == nil {
		t.Error("Err should be set when the host is unreachable")
	}
	if res.HTTPStatus != 0 {
		t.Errorf("HTTPStatus = %d, want 0", res.HTTPStatus)
	}
}

func TestCheck_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := New(Config{Timeout: 100 * time.Millisecond})
	p.newClient = func() *http.Client {
		c := srv.Client()
		c.Timeout = 100 * time.Millisecond
		return c
	}
	res := p.Check(context.Background(), registry.Store{ID: "slow", Hostname: strings.TrimPrefix(srv.URL, "https://")})
	if res.Live || res.Err == nil {
		t.Errorf("hung store should time out as not live, got %+v", res)
	}
}

func TestCheck_SendsUserAgent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	p := New(Config{UserAgent: "auditor-test/1", InsecureSkipVerify: true})
	res := p.Check(context.Background(), registry.Store{ID: "ua", Hostname: strings.TrimPrefix(srv.URL, "https://")})
	if !res.Live {
		t.Fatalf("expected live, got %+v", res)
	}
	if ua, _ := got.Load().(string); ua != "auditor-test/1" {
		t.Errorf("User-Agent = %q, want auditor-test/1", ua)
	}
}

func TestCheckAll_PreservesAssociation(t *testing.T) {
	srvA, a := tlsStore(t, "A", http.StatusOK)
	_, b := tlsStore(t, "B", http.StatusNotFound)
	c := registry.Store{ID: "C", Hostname: "127.0.0.1:1"}

	stores := []registry.Store{a, b, c}
	results := testProber(srvA, Config{}).CheckAll(context.Background(), stores)

	if len(results) != len(stores) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(stores))
	}
	for i, r := range results {
		if r.StoreID != stores[i].ID {
			t.Errorf("results[%d].StoreID = %q, want %q", i, r.StoreID, stores[i].ID)
		}
	}

	live, notLive := Partition(results)
	if len(live) != 1 || live[0].StoreID != "A" {
		t.Errorf("live = %+v, want only A", live)
	}
	if len(notLive) != 2 || notLive[0] != b.Hostname || notLive[1] != c.Hostname {
		t.Errorf("notLive = %v, want [%s %s]", notLive, b.Hostname, c.Hostname)
	}
	if len(live)+len(notLive) != len(stores) {
		t.Errorf("live + notLive = %d, want %d", len(live)+len(notLive), len(stores))
	}
}

func TestCheckAll_Unbounded_AllInFlight(t *testing.T) {
	const n = 8
	var (
		mu      sync.Mutex
		arrived int
		release = make(chan struct{})
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		arrived++
		if arrived == n {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
			w.WriteHeader(http.StatusOK)
		case <-time.After(5 * time.Second):
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	stores := make([]registry.Store, n)
	for i := range stores {
		stores[i] = registry.Store{ID: string(rune('a' + i)), Hostname: host}
	}

	results := testProber(srv, Config{}).CheckAll(context.Background(), stores)
	for _, r := range results {
		if !r.Live {
			t.Fatalf("store %s not live (status %d): probes were not all in flight together", r.StoreID, r.HTTPStatus)
		}
	}
}

func TestCheckAll_ConcurrencyLimit(t *testing.T) {
	const limit = 2
	var inFlight, peak atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	stores := make([]registry.Store, 6)
	for i := range stores {
		stores[i] = registry.Store{ID: string(rune('a' + i)), Hostname: host}
	}

	testProber(srv, Config{Concurrency: limit}).CheckAll(context.Background(), stores)
	if got := peak.Load(); got > limit {
		t.Errorf("peak in-flight = %d, want <= %d", got, limit)
	}
}

func TestCheckAll_Empty(t *testing.T) {
	results := New(Config{}).CheckAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
	live, notLive := Partition(results)
	if live != nil || notLive != nil {
		t.Errorf("Partition(nil) = %v, %v", live, notLive)
	}
}
