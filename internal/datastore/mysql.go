package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/conf"
)

// mysqlDialect serves a catch log shared between devices
type mysqlDialect struct {
	cfg conf.MySQLSettings
}

func (d *mysqlDialect) name() string { return "mysql" }

func (d *mysqlDialect) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.cfg.Username, d.cfg.Password, d.cfg.Host, d.cfg.Port, d.cfg.Database)
}

func (d *mysqlDialect) open(gcfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(d.dsn()), gcfg)
	if err != nil {
		// the DSN carries the password, so only the address is reported
		return nil, fmt.Errorf("failed to open MySQL database at %s:%d/%s: %w",
			d.cfg.Host, d.cfg.Port, d.cfg.Database, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// size sums data and index length of the schema's tables
func (d *mysqlDialect) size(ctx context.Context, db *gorm.DB) (int64, error) {
	var total *int64
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(data_length + index_length) FROM information_schema.TABLES WHERE table_schema = ?`,
		d.cfg.Database).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// backup is not available for a server database; use mysqldump on the server
func (d *mysqlDialect) backup(_ context.Context, _ *gorm.DB, _ string) error {
	return fmt.Errorf("file backup is not supported for MySQL, use mysqldump on the server")
}
