package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluator/internal/models"
)

func TestMigrateCreatesEvaluationTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.True(t, db.Migrator().HasTable(&models.EvaluationRecord{}))
	require.True(t, db.Migrator().HasColumn(&models.EvaluationRecord{}, "session_id"))
	require.NoError(t, PingPostgres(db)(context.Background()))
}

func TestConnectRedis(t *testing.T) {
	mini := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mini.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, PingRedis(client)(context.Background()))

	mini.Close()
	require.Error(t, PingRedis(client)(context.Background()))
}

func TestConnectRejectsEmptyTargets(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, err = ConnectPostgres("")
	require.Error(t, err)
}
