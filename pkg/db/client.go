package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

const bootPingTimeout = 5 * time.Second

// Postgres SQLSTATEs that mean a concurrent writer won.
var contentionCodes = map[string]string{
	"40001": "serialization failure",
	"40P01": "deadlock detected",
	"55P03": "lock wait timed out",
}

// Client owns the shared GORM pool. Transactions opened through WithTx wait
// at most lockTimeout for row locks.
type Client struct {
	conn        *gorm.DB
	lockTimeout time.Duration
}

func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, bootPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"max_open_conns":  cfg.MaxOpenConns,
			"slow_query_ms":   cfg.SlowQuery.Milliseconds(),
			"lock_timeout_ms": cfg.LockTimeout.Milliseconds(),
		}), "database connection established")
	}
	return &Client{conn: conn, lockTimeout: cfg.LockTimeout}, nil
}

// Wrap adopts an already opened connection, e.g. an in-memory sqlite handle in tests.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ForUpdate adds an exclusive row lock to the next query. The lock is held until
// the surrounding transaction commits or rolls back.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ClaimSkipLocked locks matched rows and skips rows already locked by another worker.
func ClaimSkipLocked(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}

// WithTx runs fn in a transaction that commits only when fn returns nil; a
// panic rolls back and is re-raised. Losing a lock race to another writer
// surfaces as RESOURCE_BUSY so callers can retry the whole command.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := c.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			// SET LOCAL takes no bind parameters
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", c.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(tx)
	})
	return classifyContention(err)
}

func classifyContention(err error) error {
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	pg, ok := pkgerrors.PostgresDetail(err)
	if !ok {
		return err
	}
	if reason, busy := contentionCodes[pg.Code]; busy {
		return pkgerrors.Wrap(pkgerrors.CodeBusy, err, reason)
	}
	return err
}
