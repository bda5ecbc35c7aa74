package orm

import (
	"database/sql"
	"log/slog"

	sloggorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/pointscan-io/pointscan/orm/config"
	"github.com/pointscan-io/pointscan/types"
)

var (
	UpdateAllWhenConflict = clause.OnConflict{
		UpdateAll: true,
	}
	DoNothingWhenConflict = clause.OnConflict{
		DoNothing: true,
	}
)

type Database struct {
	*gorm.DB
	config *config.Config
}

func OpenDB(config *config.Config, logger *slog.Logger) (*Database, error) {
	gormcfg := &gorm.Config{
		NamingStrategy:  schema.NamingStrategy{SingularTable: true},
		PrepareStmt:     true,
		CreateBatchSize: config.BatchSize,
		Logger:          sloggorm.New(sloggorm.WithHandler(logger.Handler())),
	}

	instance, err := gorm.Open(postgres.Open(config.DSN), gormcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := instance.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(config.MaxConns)
	sqlDB.SetMaxIdleConns(config.IdleConns)

	return &Database{DB: instance, config: config}, nil
}

// Migrate creates or updates the schema for all tracked tables. Gated by
// DB_AUTO_MIGRATE so production deployments can manage schema out of band.
func (d Database) Migrate() error {
	if !d.config.AutoMigrate {
		return nil
	}

	return d.DB.AutoMigrate(
		&types.TrackedAccount{},
		&types.PointSnapshot{},
		&types.CollectedTransfer{},
		&types.CollectedBlock{},
		&types.AccountRegistry{},
	)
}

func (d Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d Database) GetBatchSize() int {
	return d.config.BatchSize
}

// SqlDB exposes the underlying pool for stats collection.
func (d Database) SqlDB() (*sql.DB, error) {
	return d.DB.DB()
}
