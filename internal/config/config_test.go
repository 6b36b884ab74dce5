package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/anime")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "https://api.jikan.moe/v4", cfg.CatalogBaseURL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.S3Enabled())
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate_StoreDrivers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "postgres without url", cfg: Config{StoreDriver: "postgres", JWTTTL: time.Hour}, wantErr: true},
		{name: "mongo without uri", cfg: Config{StoreDriver: "mongo", JWTTTL: time.Hour}, wantErr: true},
		{name: "mongo with uri", cfg: Config{StoreDriver: " Mongo ", MongoURI: "mongodb://localhost", JWTTTL: time.Hour}},
		{name: "memory", cfg: Config{StoreDriver: "memory", JWTTTL: time.Hour}},
		{name: "unknown", cfg: Config{StoreDriver: "sqlite", JWTTTL: time.Hour}, wantErr: true},
		{name: "non positive ttl", cfg: Config{StoreDriver: "memory"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
