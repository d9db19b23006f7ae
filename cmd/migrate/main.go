// migrate runs AutoMigrate for every table. Run it as a separate job when the
// server starts with SKIP_MIGRATIONS=true.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/migrate
package main

import (
	"fmt"
	"os"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/sirupsen/logrus"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	logger := config.GetLogger()

	if err := models.MigrateTable(); err != nil {
		config.LogError(logger, "cmd/migrate", "main", "MigrateTable", nil, err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"field": "migrations"}).Info(fmt.Sprintf("migrated %d tables", len(models.AllModels())))
}
