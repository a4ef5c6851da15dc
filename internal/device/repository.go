package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for device config persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device config by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Config, error)

	// List retrieves all device configs ordered by position.
	List(ctx context.Context) ([]Config, error)

	// Create inserts a new device config.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, cfg Config) error

	// Update replaces an existing device config.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, cfg Config) error

	// Delete removes a device config by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db Querier
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// db may be an open *sql.DB or a *sql.Tx.
func NewSQLiteRepository(db Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// params is the JSON shape of the kind-specific settings column.
type params struct {
	Keyboard *KeyboardConfig `json:"keyboard,omitempty"`
	WLED     *WLEDConfig     `json:"wled,omitempty"`
}

const selectColumns = `SELECT id, name, kind, position, params FROM devices`

// GetByID retrieves a device config by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Config, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return cfg, nil
}

// List retrieves all device configs ordered by position, then id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Config, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var configs []Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return configs, nil
}

// Create inserts a new device config.
func (r *SQLiteRepository) Create(ctx context.Context, cfg Config) error {
	paramsJSON, err := marshalParams(cfg)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, kind, position, params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, string(cfg.Kind), cfg.Position, paramsJSON, now, now,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDeviceExists, cfg.ID)
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update replaces an existing device config.
func (r *SQLiteRepository) Update(ctx context.Context, cfg Config) error {
	paramsJSON, err := marshalParams(cfg)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET name = ?, kind = ?, position = ?, params = ?, updated_at = ?
		WHERE id = ?`,
		cfg.Name, string(cfg.Kind), cfg.Position, paramsJSON,
		time.Now().UTC().Format(time.RFC3339), cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a device config by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func marshalParams(cfg Config) (string, error) {
	b, err := json.Marshal(params{Keyboard: cfg.Keyboard, WLED: cfg.WLED})
	if err != nil {
		return "", fmt.Errorf("marshalling device params: %w", err)
	}
	return string(b), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*Config, error) {
	var (
		cfg        Config
		kind       string
		paramsJSON string
	)
	if err := row.Scan(&cfg.ID, &cfg.Name, &kind, &cfg.Position, &paramsJSON); err != nil {
		return nil, err
	}
	cfg.Kind = Kind(kind)

	var p params
	if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
		return nil, fmt.Errorf("unmarshalling params for %s: %w", cfg.ID, err)
	}
	cfg.Keyboard = p.Keyboard
	cfg.WLED = p.WLED
	return &cfg, nil
}

// isConstraintError reports a SQLite primary key or unique violation.
func isConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
