package database

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realqkqk123fr/temp-backend/pkg/config"
)

func TestPostgresConfigFrom(t *testing.T) {
	pc := PostgresConfigFrom(config.DatabaseConfig{
		Host:            "db",
		Port:            5433,
		User:            "app",
		Password:        "p@ss word/:",
		DBName:          "recipes",
		SSLMode:         "require",
		MaxOpenConns:    10,
		MaxIdleConns:    4,
		ConnMaxLifetime: 20 * time.Minute,
	}, true)

	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(4), pc.MinConns)
	assert.Equal(t, 20*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.True(t, pc.EnableTracing)

	u, err := url.Parse(pc.URL())
	require.NoError(t, err)
	assert.Equal(t, "db:5433", u.Host)
	assert.Equal(t, "/recipes", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word/:", password)
}

func TestPostgresConfigFrom_MinConnsCapped(t *testing.T) {
	pc := PostgresConfigFrom(config.DatabaseConfig{MaxOpenConns: 3, MaxIdleConns: 8}, false)
	assert.Equal(t, int32(3), pc.MinConns)
}
