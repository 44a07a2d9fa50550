package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/trolltrack/trolltrack/internal/conf"
)

const maxBatchSize = 10000

// Config holds the configuration for the export tool.
type Config struct {
	// Source database
	SQLitePath string

	// Target database, a DSN or its parts
	MySQLDSN      string
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPass     string
	MySQLDatabase string

	BatchSize   int
	DropTables  bool
	Clean       bool
	AutoMigrate bool
	SkipVerify  bool
	Verbose     bool

	// TrollTrack config.yaml used when flags leave the source or target unset
	ConfigPath string
}

// Load fills missing connection details from config.yaml and validates.
func (c *Config) Load() error {
	if c.SQLitePath == "" || (c.MySQLDSN == "" && c.MySQLHost == "") {
		if err := c.loadFromConfigFile(); err != nil && c.SQLitePath == "" {
			return fmt.Errorf("--sqlite-path is required (or provide config.yaml): %w", err)
		}
	}

	if c.SQLitePath == "" {
		return fmt.Errorf("--sqlite-path is required")
	}
	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}
	if c.MySQLDSN == "" && c.MySQLHost == "" {
		return fmt.Errorf("--mysql-dsn or --mysql-host is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch-size too large (max %d)", maxBatchSize)
	}
	return nil
}

// loadFromConfigFile reads the database section of a TrollTrack config.
// The sqlite path comes from database.path; the MySQL target from
// database.mysql when the flags did not name one and the config selects
// mysql. The mysql section always carries defaults, so it is ignored for
// sqlite configs.
func (c *Config) loadFromConfigFile() error {
	settings, err := conf.Load(c.ConfigPath)
	if err != nil {
		return err
	}

	if c.SQLitePath == "" {
		c.SQLitePath = settings.Database.Path
	}
	if c.MySQLDSN == "" && c.MySQLHost == "" && settings.Database.Type == "mysql" && settings.Database.MySQL.Host != "" {
		m := settings.Database.MySQL
		c.MySQLHost = m.Host
		c.MySQLPort = m.Port
		if c.MySQLPort == 0 {
			c.MySQLPort = 3306
		}
		c.MySQLUser = m.Username
		c.MySQLPass = m.Password
		c.MySQLDatabase = m.Database
	}
	return nil
}

// GetMySQLDSN returns the DSN flag as is, or builds one from its parts.
func (c *Config) GetMySQLDSN() string {
	if c.MySQLDSN != "" {
		return c.MySQLDSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.MySQLUser, c.MySQLPass, c.MySQLHost, c.MySQLPort, c.MySQLDatabase)
}

// GetSanitizedMySQLDSN returns the DSN with the password masked.
func (c *Config) GetSanitizedMySQLDSN() string {
	dsn := c.GetMySQLDSN()
	at := strings.LastIndex(dsn, "@")
	if at == -1 {
		return dsn
	}
	if colon := strings.Index(dsn[:at], ":"); colon != -1 {
		return dsn[:colon+1] + "****" + dsn[at:]
	}
	return dsn
}
