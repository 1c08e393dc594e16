package db

import (
	"path/filepath"
	"testing"

	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

func TestPostgresDSN(t *testing.T) {
	cfg := Config{
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresUser:     "app",
		PostgresPassword: "p@ss",
		PostgresName:     "images",
	}
	want := "postgres://app:p%40ss@db:5432/images?sslmode=disable"
	if got := cfg.PostgresDSN(); got != want {
		t.Fatalf("dsn: want=%s got=%s", want, got)
	}
	cfg.PostgresSSLMode = "require"
	if got := cfg.PostgresDSN(); got != "postgres://app:p%40ss@db:5432/images?sslmode=require" {
		t.Fatalf("dsn sslmode: got=%s", got)
	}
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	svc, err := Open(nil, Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "mi.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if svc.Driver() != DriverSQLite {
		t.Fatalf("driver: want=%s got=%s", DriverSQLite, svc.Driver())
	}
	if err := AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	// Running twice must be harmless.
	if err := AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("AutoMigrateAll (second run): %v", err)
	}
	m := svc.DB().Migrator()
	if !m.HasTable(&marketingimage.SnapshotRecord{}) || !m.HasTable(&marketingimage.EventRecord{}) {
		t.Fatalf("expected snapshot and event tables")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(nil, Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
