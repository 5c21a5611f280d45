package migrate

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/db"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

func devConfig(driver string) *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = config.AppEnvDev
	cfg.DB.Driver = driver
	cfg.FeatureFlags.AutoMigrate = true
	return cfg
}

func openSQLite(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return db.NewFromGorm(conn)
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "migrate-test", Level: zerolog.Disabled, Output: io.Discard})
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := devConfig("postgres")
	cfg.App.Env = config.AppEnvProd
	client := openSQLite(t)

	require.NoError(t, MaybeRunDev(context.Background(), cfg, quietLogger(), client))
	require.False(t, client.DB().Migrator().HasTable("orders"))
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	client := openSQLite(t)

	require.NoError(t, MaybeRunDev(context.Background(), devConfig("sqlite"), quietLogger(), client))
	require.True(t, client.DB().Migrator().HasTable("payment_attempts"))
}

func TestMaybeRunDevRunsGooseUpForPostgres(t *testing.T) {
	client := openSQLite(t)
	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// a closed handle makes goose fail, which shows the up path was taken
	err = MaybeRunDev(context.Background(), devConfig("postgres"), quietLogger(), client)
	require.ErrorContains(t, err, "running goose up")
}
