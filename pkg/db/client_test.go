package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
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
	client := NewFromConn(db)

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

func TestWithSerializableTx_SQLiteFallsBackToDefault(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if client.IsPostgres() {
		t.Fatalf("sqlite connection reported as postgres")
	}
	err := client.WithSerializableTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "serial"}).Error
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolationOnSQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !pkgerrors.IsCode(Classify(err, "insert"), pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict classification")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.Code
	}{
		{name: "not found", err: gorm.ErrRecordNotFound, want: pkgerrors.CodeNotFound},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: pkgerrors.CodeSerializationConflict},
		{name: "deadlock", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), want: pkgerrors.CodeSerializationConflict},
		{name: "sqlite busy", err: errors.New("database is locked"), want: pkgerrors.CodeSerializationConflict},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: pkgerrors.CodeConflict},
		{name: "deadline", err: context.DeadlineExceeded, want: pkgerrors.CodeDependency},
		{name: "coded passthrough", err: pkgerrors.New(pkgerrors.CodeValidation, "bad"), want: pkgerrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "op")
			if code := pkgerrors.CodeOf(got); code != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, code)
			}
		})
	}
	if Classify(nil, "op") != nil {
		t.Fatalf("nil should classify to nil")
	}
}
