package db

import (
	"fmt"
	"time"

	"WaveDeck/config"
	"WaveDeck/logger"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLDSN builds the driver DSN from configuration.
func MySQLDSN(cfg *config.Config) string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.DBUser
	dc.Passwd = cfg.DBPassword
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort)
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// ConnectGorm opens a pooled GORM connection to MySQL.
func ConnectGorm(cfg *config.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(MySQLDSN(cfg)), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("connected to MySQL",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return gdb, nil
}

// CloseGorm closes the pool behind gdb.
func CloseGorm(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
