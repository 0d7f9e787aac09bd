package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// EligibleAppVersion is the storefront schema version the audit covers.
const EligibleAppVersion = "3"

// ExcludedPlans are the plan tiers that never get audited. "null" is the
// literal string some legacy records carry, not a missing value.
var ExcludedPlans = []string{"free", "null"}

// ErrUnsupportedScheme is returned by Open for URIs no backend understands.
var ErrUnsupportedScheme = errors.New("registry: unsupported uri scheme")

// Store is one storefront record as read from the registry.
type Store struct {
	ID         string
	Hostname   string
	Plan       string
	AppVersion string
}

// ScoreRecord is one persisted speed measurement.
// It is stored as {storeId, scores: {home: {desktop}}, requestedAt}.
type ScoreRecord struct {
	StoreID     string
	Desktop     float64
	RequestedAt time.Time
}

// Registry is the store registry: the source of premium stores and the sink
// for their speed scores.
type Registry interface {
	// EligibleStores returns every premium store in one call.
	EligibleStores(ctx context.Context) ([]Store, error)

	// InsertScore appends rec and returns the identifier the backend assigned.
	InsertScore(ctx context.Context, rec ScoreRecord) (string, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Eligible reports whether s is a premium store. A missing plan counts as
// eligible because it is not one of ExcludedPlans.
func Eligible(s Store) bool {
	if s.AppVersion != EligibleAppVersion {
		return false
	}
	for _, p := range ExcludedPlans {
		if s.Plan == p {
			return false
		}
	}
	return true
}

// Options configures Open.
type Options struct {
	// DBName selects the database. Only MongoDB uses it.
	DBName string

	// StoresCollection and ScoresCollection name the collections (or tables).
	StoresCollection string
	ScoresCollection string

	// ConnectTimeout bounds connect + ping. Default: 10s.
	ConnectTimeout time.Duration
}

func (o *Options) defaults() {
	if o.StoresCollection == "" {
		o.StoresCollection = "stores"
	}
	if o.ScoresCollection == "" {
		o.ScoresCollection = "speedscores"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
}

// Open connects to the registry at uri. The scheme picks the backend:
//
//	mongodb://, mongodb+srv://   MongoDB
//	postgres://, postgresql://   PostgreSQL (gorm)
//	sqlite://<path>, file:<path> SQLite (modernc)
func Open(ctx context.Context, uri string, opts Options) (Registry, error) {
	opts.defaults()

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	var (
		reg Registry
		err error
	)
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		if opts.DBName == "" {
			return nil, fmt.Errorf("registry: mongodb requires a database name")
		}
		var m *Mongo
		if m, err = OpenMongo(ctx, uri, opts); err == nil {
			reg = m
		}
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		var p *Postgres
		if p, err = OpenPostgres(ctx, uri, opts); err == nil {
			reg = p
		}
	case strings.HasPrefix(uri, "sqlite://"), strings.HasPrefix(uri, "file:"):
		var s *SQLite
		if s, err = OpenSQLite(ctx, strings.TrimPrefix(uri, "sqlite://"), opts); err == nil {
			reg = s
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, redact(uri))
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdent rejects table names that cannot be interpolated into SQL safely.
func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("registry: invalid table name %q", n)
		}
	}
	return nil
}

// redact strips everything after the scheme so credentials never reach logs.
func redact(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[:i+3] + "…"
	}
	if i := strings.Index(uri, ":"); i >= 0 {
		return uri[:i+1] + "…"
	}
	return "…"
}
