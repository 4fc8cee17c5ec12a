package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, DriverPQ, cfg.Database.Driver)
	assert.Equal(t, 28*24*time.Hour, cfg.Enrollment.DropWindow)
	assert.Equal(t, 5*time.Second, cfg.Enrollment.TxTimeout)
	assert.False(t, cfg.Enrollment.RequireApproval)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2, cfg.Notifications.Workers)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "PGX")
	v.Set("ENROLLMENT_DROP_WINDOW", "336h")
	v.Set("ENROLLMENT_TX_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, DriverPGX, cfg.Database.Driver)
	assert.Equal(t, 14*24*time.Hour, cfg.Enrollment.DropWindow)
	assert.Equal(t, 5*time.Second, cfg.Enrollment.TxTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestUnknownDriverFallsBackToPQ(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "mysql")

	assert.Equal(t, DriverPQ, fromViper(v).Database.Driver)
}
