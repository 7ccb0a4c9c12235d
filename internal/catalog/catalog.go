// Package catalog keeps a database of rendered sessions and the spawn spots
// the server reported in each.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/carlaviz/startpositions/internal/geo"
	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database.
type Config struct {
	Driver string
	// Path is the SQLite file. Empty means a private in-memory database.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// Catalog records viewer reports.
type Catalog struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log zerolog.Logger) (*Catalog, error) {
	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case DriverSQLite, "":
		db, err = GetSqliteDB(cfg.Path)
	case DriverPostgres:
		log.Debug().Msg("Connecting to Postgres catalog")
		db, err = GetPostgresDB(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown catalog driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s catalog: %w", cfg.Driver, err)
	}

	c := &Catalog{DB: db, Logger: log}
	c.SqlDB, err = db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := c.SqlDB.Ping(); err != nil {
		c.SqlDB.Close()
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}

	if err := c.Setup(); err != nil {
		c.SqlDB.Close()
		return nil, err
	}
	return c, nil
}

// GetPostgresDB returns a connection to a Postgres database.
func GetPostgresDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database private to this connection pool.
func GetSqliteDB(path string) (*gorm.DB, error) {
	if path == "" {
		path = fmt.Sprintf("file:catalog-%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:     true,
		CreateBatchSize: 1000,
		Logger:          logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA cache_size = -8000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}
	return db, nil
}

// Setup migrates the catalog tables.
func (c *Catalog) Setup() error {
	c.Logger.Debug().Str("dialect", c.DB.Dialector.Name()).Msg("Migrating catalog schema")
	if err := c.DB.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Name identifies the catalog in logs.
func (c *Catalog) Name() string { return "catalog" }

// Record stores r with one row per spawn spot.
func (c *Catalog) Record(ctx context.Context, r *viewer.Report) error {
	session, err := sessionFromReport(r)
	if err != nil {
		return err
	}
	if err := c.DB.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to store session %s: %w", r.SessionID, err)
	}
	c.Logger.Info().
		Str("session", session.UUID).
		Str("map", session.MapName).
		Int("spawn_spots", len(session.SpawnSpots)).
		Msg("Recorded session")
	return nil
}

// Sessions returns the most recent sessions, newest first, with their spots.
func (c *Catalog) Sessions(ctx context.Context, limit int) ([]Session, error) {
	var sessions []Session
	err := c.DB.WithContext(ctx).
		Preload("SpawnSpots", func(db *gorm.DB) *gorm.DB { return db.Order("spot_index") }).
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.SqlDB == nil {
		return nil
	}
	return c.SqlDB.Close()
}

func sessionFromReport(r *viewer.Report) (*Session, error) {
	markers, err := json.Marshal(r.Markers)
	if err != nil {
		return nil, fmt.Errorf("encode markers: %w", err)
	}

	session := &Session{
		UUID:          r.SessionID.String(),
		Attempt:       r.Attempt,
		Host:          r.Host,
		Port:          r.Port,
		MapName:       r.MapName,
		Detection:     string(r.Detection),
		SpawnCount:    r.SpawnCount,
		Selector:      r.Selector,
		ConnectMillis: r.ConnectDuration.Milliseconds(),
		RenderMillis:  r.RenderDuration.Milliseconds(),
		Markers:       datatypes.JSON(markers),
		SpawnSpots:    make([]SpawnSpot, len(r.SpawnSpots)),
	}

	for i, spot := range r.SpawnSpots {
		loc, err := geo.PointFromPosition(spot.Location)
		if err != nil {
			return nil, fmt.Errorf("spawn spot %d: %w", i, err)
		}
		session.SpawnSpots[i] = SpawnSpot{
			SpotIndex: i,
			Location:  loc,
			Yaw:       spot.Rotation.Yaw,
		}
	}
	// a spot selected twice keeps its single row
	for _, m := range r.Markers {
		if m.Index < 0 || m.Index >= len(session.SpawnSpots) {
			continue
		}
		px, py := m.PixelX, m.PixelY
		row := &session.SpawnSpots[m.Index]
		row.Drawn = true
		row.PixelX = &px
		row.PixelY = &py
	}
	return session, nil
}
