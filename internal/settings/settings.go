package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/config"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/database"
)

// Setting keys in the settings table.
const (
	KeyAppID       = "broadcast_app_id"
	KeySyncEnabled = "sync_enabled"
	KeyRunAtBoot   = "run_at_boot"
)

// Record is the full persisted settings record.
type Record struct {
	AppID       string          `json:"app_id"`
	SyncEnabled bool            `json:"sync_enabled"`
	RunAtBoot   bool            `json:"run_at_boot"`
	Devices     []device.Config `json:"devices"`
}

// Store persists the settings record in SQLite.
//
// Thread Safety: safe for concurrent use; SQLite serializes writers.
type Store struct {
	db      *database.DB
	devices *device.SQLiteRepository
}

// NewStore creates a store over a migrated database.
func NewStore(db *database.DB) *Store {
	return &Store{
		db:      db,
		devices: device.NewSQLiteRepository(db),
	}
}

// Devices returns the device config repository.
func (s *Store) Devices() device.Repository {
	return s.devices
}

// Load reads the whole record. Missing keys read as zero values.
func (s *Store) Load(ctx context.Context) (Record, error) {
	values, err := s.values(ctx)
	if err != nil {
		return Record{}, err
	}

	rec := Record{AppID: values[KeyAppID]}
	if rec.SyncEnabled, err = parseBool(values, KeySyncEnabled); err != nil {
		return Record{}, err
	}
	if rec.RunAtBoot, err = parseBool(values, KeyRunAtBoot); err != nil {
		return Record{}, err
	}

	rec.Devices, err = s.devices.List(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("loading devices: %w", err)
	}
	return rec, nil
}

// SetSyncEnabled persists the sync flag.
func (s *Store) SetSyncEnabled(ctx context.Context, enabled bool) error {
	return s.set(ctx, s.db, KeySyncEnabled, strconv.FormatBool(enabled))
}

// SetRunAtBoot persists the run-at-boot flag.
func (s *Store) SetRunAtBoot(ctx context.Context, enabled bool) error {
	return s.set(ctx, s.db, KeyRunAtBoot, strconv.FormatBool(enabled))
}

// SetAppID persists the broadcast application identifier.
func (s *Store) SetAppID(ctx context.Context, appID string) error {
	return s.set(ctx, s.db, KeyAppID, appID)
}

// ApplyAppID stores appID when it is non-empty and differs from the
// stored value. A configured app ID therefore wins over the stored one at
// every start; leave it empty to keep the value set through the API.
// It reports whether the stored value changed.
func (s *Store) ApplyAppID(ctx context.Context, appID string) (bool, error) {
	if appID == "" {
		return false, nil
	}
	values, err := s.values(ctx)
	if err != nil {
		return false, err
	}
	if values[KeyAppID] == appID {
		return false, nil
	}
	if err := s.SetAppID(ctx, appID); err != nil {
		return false, err
	}
	return true, nil
}

// Seed writes rec only when the store holds no settings and no devices.
// It reports whether the seed was applied.
func (s *Store) Seed(ctx context.Context, rec Record) (bool, error) {
	applied := false
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var settingsCount, deviceCount int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&settingsCount); err != nil {
			return fmt.Errorf("counting settings: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&deviceCount); err != nil {
			return fmt.Errorf("counting devices: %w", err)
		}
		if settingsCount > 0 || deviceCount > 0 {
			return nil
		}

		for key, value := range map[string]string{
			KeyAppID:       rec.AppID,
			KeySyncEnabled: strconv.FormatBool(rec.SyncEnabled),
			KeyRunAtBoot:   strconv.FormatBool(rec.RunAtBoot),
		} {
			if err := s.set(ctx, tx, key, value); err != nil {
				return err
			}
		}

		repo := device.NewSQLiteRepository(tx)
		for i, cfg := range rec.Devices {
			cfg = device.ApplyDefaults(cfg)
			cfg.Position = i
			if err := device.ValidateConfig(cfg); err != nil {
				return fmt.Errorf("seeding device %d: %w", i, err)
			}
			if err := repo.Create(ctx, cfg); err != nil {
				return fmt.Errorf("seeding device %s: %w", cfg.ID, err)
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (s *Store) values(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return values, nil
}

func (s *Store) set(ctx context.Context, db device.Querier, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersist, key, err)
	}
	return nil
}

func parseBool(values map[string]string, key string) (bool, error) {
	raw, ok := values[key]
	if !ok || raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return b, nil
}

// FromConfig builds the seed record from the YAML configuration.
func FromConfig(cfg *config.Config) Record {
	rec := Record{
		AppID:       cfg.App.BroadcastAppID,
		SyncEnabled: cfg.App.SyncEnabled,
		RunAtBoot:   cfg.App.RunAtBoot,
	}
	for i, dc := range cfg.Devices {
		rec.Devices = append(rec.Devices, DeviceFromConfig(dc, i))
	}
	return rec
}

// DeviceFromConfig converts one YAML device entry.
func DeviceFromConfig(dc config.DeviceConfig, position int) device.Config {
	out := device.Config{
		ID:       dc.ID,
		Name:     dc.Name,
		Kind:     device.Kind(dc.Kind),
		Position: position,
	}
	if kb := dc.Keyboard; kb != nil {
		out.Keyboard = &device.KeyboardConfig{
			Path:       kb.Path,
			VendorID:   kb.VendorID,
			ProductID:  kb.ProductID,
			Brightness: kb.Brightness,
			ZoneMap:    append([]int(nil), kb.ZoneMap...),
		}
	}
	if w := dc.WLED; w != nil {
		out.WLED = &device.WLEDConfig{
			Host:            w.Host,
			HTTPPort:        w.HTTPPort,
			UDPPort:         w.UDPPort,
			LEDCount:        w.LEDCount,
			RealtimeTimeout: w.RealtimeTimeout,
			Segments:        append([]int(nil), w.Segments...),
		}
	}
	return out
}
