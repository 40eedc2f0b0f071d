package repo

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	Name string `gorm:"primaryKey"`
	Size int
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseWithTxKeepsConnectionOnNil(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.WithTx(nil).db != db {
		t.Fatalf("expected nil tx to keep the original connection")
	}
	tx := db.Begin()
	defer tx.Rollback()
	if base.WithTx(tx).db != tx {
		t.Fatalf("expected tx to be bound")
	}
}

func TestTakeOrNil(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&widget{Name: "cup", Size: 12}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := TakeOrNil[widget](db, "name = ?", "cup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Size != 12 {
		t.Fatalf("expected cup widget, got %+v", got)
	}

	missing, err := TakeOrNil[widget](db, "name = ?", "saucer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing row, got %+v", missing)
	}
}

func TestForUpdateRunsOnSQLite(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if err := db.Create(&widget{Name: "cup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := TakeOrNil[widget](base.ForUpdate(context.Background()), "name = ?", "cup")
	if err != nil || got == nil {
		t.Fatalf("expected locked read to succeed, got %v %v", got, err)
	}
}
