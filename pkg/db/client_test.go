package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	var before int64
	if err := db.Model(&testModel{}).Count(&before).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var after int64
	if err := db.Model(&testModel{}).Count(&after).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if after != before {
		t.Fatalf("expected rollback after panic, before=%d after=%d", before, after)
	}
}

func TestForUpdateIsIgnoredBySQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "locked"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	var got testModel
	if err := ForUpdate(db).Where("name = ?", "locked").First(&got).Error; err != nil {
		t.Fatalf("locked read failed: %v", err)
	}
	if got.Name != "locked" {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT * FROM orders WHERE id = 1", 1 }

	ql.Trace(context.Background(), time.Now(), stmt, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast statements must stay silent, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("missing rows must stay silent, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), "FROM orders") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), stmt, errors.New("connection reset"))
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), stmt, errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode must not log, got %s", buf.String())
	}
}

func TestWithTxReportsLockContentionAsBusy(t *testing.T) {
	client := Wrap(newTestDB(t))
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return fmt.Errorf("lock order: %w", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeBusy) {
		t.Fatalf("expected RESOURCE_BUSY, got %v", err)
	}
	if !pkgerrors.Retryable(err) {
		t.Fatalf("busy errors must be retryable")
	}

	plain := &pgconn.PgError{Code: "23514", Message: "check constraint"}
	if err := classifyContention(plain); err != error(plain) {
		t.Fatalf("other postgres errors must pass through, got %v", err)
	}
	typed := pkgerrors.New(pkgerrors.CodeStateConflict, "order is not cooking")
	if err := classifyContention(typed); err != error(typed) {
		t.Fatalf("typed errors must pass through, got %v", err)
	}
}
