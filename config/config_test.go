package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Env:      EnvDebug,
		Database: Database{Driver: "sqlite"},
		Marvel:   Marvel{Workers: 4},
		Game: Game{
			StartingCredits: 10,
			PacketCost:      1,
			PacketSize:      5,
			AlbumPageSize:   18,
		},
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.Game.StartingCredits)
	assert.Equal(t, 1, cfg.Game.PacketCost)
	assert.Equal(t, 5, cfg.Game.PacketSize)
	assert.Equal(t, 18, cfg.Game.AlbumPageSize)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Game.PacketSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Database.Driver = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Env = EnvRelease
	assert.Error(t, cfg.Validate(), "release mode needs a JWT secret")

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsRelease())
}
