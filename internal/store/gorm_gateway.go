package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/house-of-vanity/khm/internal/khmlog"
	"github.com/house-of-vanity/khm/internal/kherrors"
)

// postgresUniqueViolation is the SQLSTATE for a unique_violation.
const postgresUniqueViolation = "23505"

// GormGateway implements Gateway over any GORM dialector. Production code
// constructs it via NewPostgresGateway; tests construct it directly over an
// in-memory SQLite db, matching claworc's own test convention of exercising
// a real database rather than a hand-rolled fake.
type GormGateway struct {
	db         *gorm.DB
	maxRetries int
}

// NewGormGateway wraps an already-open *gorm.DB, running the AutoMigrate
// claworc's database.Init does at startup.
func NewGormGateway(db *gorm.DB) (*GormGateway, error) {
	if err := db.AutoMigrate(&keyRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &GormGateway{db: db, maxRetries: 5}, nil
}

// withRetry retries fn on transient connection failures with exponential
// backoff, per spec.md §4.1 ("retried by the gateway up to a bounded number
// of attempts with exponential backoff"). Non-transient errors return
// immediately.
func (g *GormGateway) withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt == g.maxRetries {
			break
		}
		khmlog.Printf("store: transient error (attempt %d/%d): %v", attempt+1, g.maxRetries, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return kherrors.Wrap(kherrors.Unavailable, "database unavailable after retries", err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Constraint violations are not transient.
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "too many connections", "server closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
		return true
	}
	// sqlite, used by tests, reports unique violations as a plain message.
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func (g *GormGateway) UpsertTriple(ctx context.Context, flow, host, key string) (UpsertResult, error) {
	result := Inserted
	err := g.withRetry(ctx, func() error {
		row := keyRow{Flow: flow, Host: host, PublicKey: key, Deprecated: false}
		err := g.db.WithContext(ctx).Create(&row).Error
		if err == nil {
			result = Inserted
			return nil
		}
		if isUniqueViolation(err) {
			result = AlreadyPresent
			return nil
		}
		return kherrors.Wrap(kherrors.Internal, "insert key record", err)
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

func (g *GormGateway) List(ctx context.Context, flow string, includeDeprecated bool) ([]KeyRecord, error) {
	var rows []keyRow
	err := g.withRetry(ctx, func() error {
		q := g.db.WithContext(ctx).Where("flow = ?", flow)
		if !includeDeprecated {
			q = q.Where("deprecated = ?", false)
		}
		return q.Order("host ASC, public_key ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, kherrors.Wrap(kherrors.Internal, "list key records", err)
	}
	out := make([]KeyRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toRecord()
	}
	return out, nil
}

func (g *GormGateway) SetDeprecated(ctx context.Context, flow, host string, value bool) (int64, error) {
	var affected int64
	err := g.withRetry(ctx, func() error {
		tx := g.db.WithContext(ctx).Model(&keyRow{}).
			Where("flow = ? AND host = ? AND deprecated = ?", flow, host, !value).
			Update("deprecated", value)
		if tx.Error != nil {
			return kherrors.Wrap(kherrors.Internal, "set deprecated", tx.Error)
		}
		affected = tx.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (g *GormGateway) HardDeleteHost(ctx context.Context, flow, host string) (int64, error) {
	var affected int64
	err := g.withRetry(ctx, func() error {
		tx := g.db.WithContext(ctx).
			Where("flow = ? AND host = ? AND deprecated = ?", flow, host, true).
			Delete(&keyRow{})
		if tx.Error != nil {
			return kherrors.Wrap(kherrors.Internal, "hard delete host", tx.Error)
		}
		affected = tx.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (g *GormGateway) ListHostnames(ctx context.Context, flow string) ([]string, error) {
	var hosts []string
	err := g.withRetry(ctx, func() error {
		return g.db.WithContext(ctx).Model(&keyRow{}).
			Where("flow = ?", flow).
			Distinct("host").
			Order("host ASC").
			Pluck("host", &hosts).Error
	})
	if err != nil {
		return nil, kherrors.Wrap(kherrors.Internal, "list hostnames", err)
	}
	return hosts, nil
}

func (g *GormGateway) HostState(ctx context.Context, flow, host string) (hasActive, hasDeprecated bool, err error) {
	err = g.withRetry(ctx, func() error {
		var activeCount, deprecatedCount int64
		if e := g.db.WithContext(ctx).Model(&keyRow{}).
			Where("flow = ? AND host = ? AND deprecated = ?", flow, host, false).
			Count(&activeCount).Error; e != nil {
			return kherrors.Wrap(kherrors.Internal, "count active records", e)
		}
		if e := g.db.WithContext(ctx).Model(&keyRow{}).
			Where("flow = ? AND host = ? AND deprecated = ?", flow, host, true).
			Count(&deprecatedCount).Error; e != nil {
			return kherrors.Wrap(kherrors.Internal, "count deprecated records", e)
		}
		hasActive = activeCount > 0
		hasDeprecated = deprecatedCount > 0
		return nil
	})
	return hasActive, hasDeprecated, err
}

func (g *GormGateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return kherrors.Wrap(kherrors.Internal, "get sql.DB", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return kherrors.Wrap(kherrors.Unavailable, "ping database", err)
	}
	return nil
}
