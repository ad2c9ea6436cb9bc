package config

import (
	"database/sql"
	"log"
	"net"
	"os"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const SearchLimit = 50

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// ConnectDatabaseWithRetry blocks until MySQL accepts a connection, then installs
// the tracing and tenant guard plugins on the global handle.
func ConnectDatabaseWithRetry() {
	dsn := mysqlDSNFromEnv()
	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(mysql.Open(dsn), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				applyPoolSettings(sqlDB)
			}
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := db.Use(NewTenantGuardPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install tenant guard plugin: %v", pluginErr)
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := min(time.Second*time.Duration(1<<min(attempt, 5)), 30*time.Second)
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// mysqlDSNFromEnv builds the driver DSN from DB_*. A DB_HOST that is an
// absolute path is dialled as a unix socket and DB_PORT is ignored.
func mysqlDSNFromEnv() string {
	cfg := gomysql.NewConfig()
	cfg.User = os.Getenv("DB_USER")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	host := os.Getenv("DB_HOST")
	if strings.HasPrefix(host, "/") {
		cfg.Net = "unix"
		cfg.Addr = host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, os.Getenv("DB_PORT"))
	}
	return cfg.FormatDSN()
}

// applyPoolSettings reads DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS and
// DB_CONN_MAX_LIFETIME_SECONDS.
func applyPoolSettings(sqlDB *sql.DB) {
	if n := intFromEnv("DB_MAX_OPEN_CONNS", 25); n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := intFromEnv("DB_MAX_IDLE_CONNS", 10); n >= 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if secs := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); secs > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(secs) * time.Second)
	}
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	level := logger.Error
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  level,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
