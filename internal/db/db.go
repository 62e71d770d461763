package db

import (
	"log"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a gorm DB. MySQL DSNs use the mysql driver; anything that
// looks like a file path or ":memory:" goes through sqlite so local dev and
// CI can run without a database server.
func Connect(dsn string) *gorm.DB {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		gdb *gorm.DB
		err error
	)
	if isSQLiteDSN(dsn) {
		gdb, err = gorm.Open(gormsqlite.Open(dsn), cfg)
	} else {
		gdb, err = gorm.Open(mysql.Open(dsn), cfg)
	}
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func isSQLiteDSN(dsn string) bool {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return true
	}
	return strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite")
}
