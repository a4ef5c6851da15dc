package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/chroma-sync/internal/infrastructure/config"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/database"
	"github.com/nerrad567/chroma-sync/migrations"
)

// setupTestDB creates a migrated SQLite database in a temp dir.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestSQLiteRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	kb := Config{ID: "kb", Name: "Keyboard", Kind: KindKeyboard, Position: 1,
		Keyboard: &KeyboardConfig{VendorID: 0x048d, ProductID: 0xc965, Brightness: 2, ZoneMap: []int{3, 2, 1, 0}}}
	led := validWLED()
	led.Position = 0

	for _, c := range []Config{kb, led} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create(%s) error = %v", c.ID, err)
		}
	}

	if err := repo.Create(ctx, kb); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrDeviceExists", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "desk" || list[1].ID != "kb" {
		t.Fatalf("List() order = %+v, want desk then kb", list)
	}

	got, err := repo.GetByID(ctx, "kb")
	if err != nil {
		t.Fatalf("GetByID(kb) error = %v", err)
	}
	if got.Keyboard == nil || got.Keyboard.ProductID != 0xc965 || got.Keyboard.ZoneMap[0] != 3 {
		t.Errorf("GetByID(kb).Keyboard = %+v, want round-tripped settings", got.Keyboard)
	}
	if got.WLED != nil {
		t.Errorf("GetByID(kb).WLED = %+v, want nil", got.WLED)
	}

	led.WLED.LEDCount = 300
	led.Name = "Desk strip v2"
	if err := repo.Update(ctx, led); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, "desk")
	if got.Name != "Desk strip v2" || got.WLED.LEDCount != 300 {
		t.Errorf("after Update got %+v", got)
	}

	if err := repo.Delete(ctx, "kb"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "kb"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID(deleted) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Update(ctx, validWLED()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrDeviceNotFound", err)
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 0 {
		t.Errorf("List() on empty = %v, %v", list, err)
	}
}
