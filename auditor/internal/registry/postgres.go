package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres is a registry kept in PostgreSQL, with the same table layout as
// the SQLite backend.
type Postgres struct {
	db     *gorm.DB
	stores string
	scores string
}

type storeRow struct {
	ID         string  `gorm:"column:id;primaryKey"`
	Store      string  `gorm:"column:store"`
	Plan       *string `gorm:"column:plan"`
	AppVersion string  `gorm:"column:app_version"`
}

type scoreRow struct {
	ID          string    `gorm:"column:id;primaryKey"`
	StoreID     string    `gorm:"column:store_id;index"`
	HomeDesktop float64   `gorm:"column:home_desktop"`
	RequestedAt time.Time `gorm:"column:requested_at"`
}

// OpenPostgres connects with gorm, pings, and creates the scores table when
// it does not exist yet. The stores table is owned by the storefront platform
// and is never migrated here.
func OpenPostgres(ctx context.Context, uri string, opts Options) (*Postgres, error) {
	opts.defaults()
	if err := checkIdent(opts.StoresCollection, opts.ScoresCollection); err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("registry: gorm sql db: %w", err)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("registry: ping postgres: %w", err)
	}
	if err := db.WithContext(ctx).Table(opts.ScoresCollection).AutoMigrate(&scoreRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("registry: migrate %s: %w", opts.ScoresCollection, err)
	}

	return &Postgres{db: db, stores: opts.StoresCollection, scores: opts.ScoresCollection}, nil
}

// EligibleStores returns every premium store. A NULL plan is eligible.
func (p *Postgres) EligibleStores(ctx context.Context) ([]Store, error) {
	var rows []storeRow
	if err := p.db.WithContext(ctx).Scopes(p.eligible).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("registry: postgres query stores: %w", err)
	}

	out := make([]Store, 0, len(rows))
	for _, r := range rows {
		st := Store{ID: r.ID, Hostname: r.Store, AppVersion: r.AppVersion}
		if r.Plan != nil {
			st.Plan = *r.Plan
		}
		out = append(out, st)
	}
	slog.Info("registry: eligible stores loaded", "backend", "postgres", "count", len(out))
	return out, nil
}

// InsertScore appends one score row under a fresh UUID.
func (p *Postgres) InsertScore(ctx context.Context, rec ScoreRecord) (string, error) {
	row := newScoreRow(rec)
	if err := p.insert(p.db.WithContext(ctx), &row).Error; err != nil {
		return "", fmt.Errorf("registry: postgres insert score: %w", err)
	}
	return row.ID, nil
}

// eligible scopes a query to the premium rows of the stores table.
func (p *Postgres) eligible(db *gorm.DB) *gorm.DB {
	return db.Table(p.stores).
		Where("(plan IS NULL OR plan NOT IN ?) AND app_version = ?", ExcludedPlans, EligibleAppVersion).
		Order("id")
}

func (p *Postgres) insert(db *gorm.DB, row *scoreRow) *gorm.DB {
	return db.Table(p.scores).Create(row)
}

func newScoreRow(rec ScoreRecord) scoreRow {
	return scoreRow{
		ID:          uuid.NewString(),
		StoreID:     rec.StoreID,
		HomeDesktop: rec.Desktop,
		RequestedAt: rec.RequestedAt.UTC(),
	}
}

// Close closes the connection pool.
func (p *Postgres) Close(context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
