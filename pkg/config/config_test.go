package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg := fromViper(defaultsViper())

	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, 60, cfg.RateLimit.APIRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.APIWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.Export.ArchiveTTL)
	assert.True(t, cfg.Export.IncludeReports)
	require.NoError(t, cfg.Validate())
}

func TestInvalidDurationFallsBack(t *testing.T) {
	v := defaultsViper()
	v.Set("RATE_LIMIT_API_WINDOW", "soon")
	v.Set("API_PREFIX", "/api/")

	cfg := fromViper(v)
	assert.Equal(t, time.Minute, cfg.RateLimit.APIWindow)
	assert.Equal(t, "/api", cfg.APIPrefix)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"unknown driver":       func(v *viper.Viper) { v.Set("STORAGE_DRIVER", "ftp") },
		"s3 without bucket":    func(v *viper.Viper) { v.Set("STORAGE_DRIVER", "s3") },
		"production dev jwt":   func(v *viper.Viper) { v.Set("ENV", EnvProduction) },
		"zero rate limit":      func(v *viper.Viper) { v.Set("RATE_LIMIT_API_REQUESTS", 0) },
		"local without secret": func(v *viper.Viper) { v.Set("STORAGE_SIGNED_URL_SECRET", "") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := defaultsViper()
			mutate(v)
			assert.Error(t, fromViper(v).Validate())
		})
	}

	v := defaultsViper()
	v.Set("STORAGE_DRIVER", "S3")
	v.Set("S3_BUCKET", "exports")
	assert.NoError(t, fromViper(v).Validate())
}

func TestDatabaseURL(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "estimates", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/estimates?sslmode=disable", cfg.URL())
	assert.Contains(t, cfg.DSN(), "dbname=estimates")
}
