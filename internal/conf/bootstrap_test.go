package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewBootstrap_Defaults(t *testing.T) {
	configPath := writeConfig(t, `server:
  http:
    addr: :8080
data:
  database:
    driver: mysql
`)
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/accounts")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, ":8080", bc.Server.HTTP.Addr)
	assert.Equal(t, "tcp", bc.Server.HTTP.Network)
	assert.Equal(t, 10*time.Second, bc.Server.HTTP.Timeout)
	assert.Equal(t, ":9000", bc.Server.GRPC.Addr)

	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/accounts", bc.Data.Database.Source)
	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.ReadTimeout)

	assert.Equal(t, "http://cards:9000", bc.Downstream.Cards.BaseURL)
	assert.Equal(t, "http://loans:8090", bc.Downstream.Loans.BaseURL)
	assert.Equal(t, uint32(3), bc.Downstream.Cards.FailureThreshold)
	assert.Equal(t, 10*time.Second, bc.Downstream.Cards.OpenDuration)
	assert.Equal(t, 3, bc.Downstream.Loans.RetryCount)
	assert.Equal(t, time.Second, bc.Downstream.Loans.AttemptTimeout)
	assert.Equal(t, 2*time.Second, bc.Downstream.AggregationDeadline)

	assert.Equal(t, 10000, bc.Cache.Size)
	assert.Equal(t, 5*time.Minute, bc.Cache.TTL)
	assert.False(t, bc.Cache.Remote)

	assert.Equal(t, "redis", bc.Events.Driver)
	assert.Equal(t, 4, bc.Events.Workers)
	assert.Equal(t, 3, bc.Events.RetryCount)

	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
	assert.True(t, bc.Metrics.Enabled)
}

func TestNewBootstrap_FileValues(t *testing.T) {
	configPath := writeConfig(t, `data:
  database:
    driver: mysql
    source: root:secret@tcp(db:3306)/accounts?parseTime=true
downstream:
  cards:
    base_url: http://localhost:9001
    failure_threshold: 5
    open_duration: 30s
  aggregation_deadline: 750ms
cache:
  ttl: 1m
  remote: true
events:
  driver: log
`)

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)

	assert.Equal(t, "root:secret@tcp(db:3306)/accounts?parseTime=true", bc.Data.Database.Source)
	assert.Equal(t, "http://localhost:9001", bc.Downstream.Cards.BaseURL)
	assert.Equal(t, uint32(5), bc.Downstream.Cards.FailureThreshold)
	assert.Equal(t, 30*time.Second, bc.Downstream.Cards.OpenDuration)
	assert.Equal(t, 750*time.Millisecond, bc.Downstream.AggregationDeadline)
	assert.Equal(t, time.Minute, bc.Cache.TTL)
	assert.True(t, bc.Cache.Remote)
	assert.Equal(t, "log", bc.Events.Driver)
}

func TestNewBootstrap_EnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, bc *Bootstrap)
	}{
		{
			name:    "override http addr",
			envVars: map[string]string{"KURO_SERVER_HTTP_ADDR": ":9999"},
			check: func(t *testing.T, bc *Bootstrap) {
				assert.Equal(t, ":9999", bc.Server.HTTP.Addr)
			},
		},
		{
			name:    "override redis addr",
			envVars: map[string]string{"REDIS_ADDR": "redis:6380"},
			check: func(t *testing.T, bc *Bootstrap) {
				assert.Equal(t, "redis:6380", bc.Data.Redis.Addr)
			},
		},
		{
			name:    "override loans url",
			envVars: map[string]string{"KURO_DOWNSTREAM_LOANS_BASE_URL": "http://loans.internal"},
			check: func(t *testing.T, bc *Bootstrap) {
				assert.Equal(t, "http://loans.internal", bc.Downstream.Loans.BaseURL)
			},
		},
		{
			name:    "override log level",
			envVars: map[string]string{"KURO_LOG_LEVEL": "debug"},
			check: func(t *testing.T, bc *Bootstrap) {
				assert.Equal(t, "debug", bc.Log.Level)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MYSQL_DSN", "dsn")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			bc, err := NewBootstrap("")
			require.NoError(t, err)
			tt.check(t, bc)
		})
	}
}

func TestNewBootstrap_MissingFile(t *testing.T) {
	_, err := NewBootstrap(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Bootstrap {
		return &Bootstrap{
			Data: &Data{Database: &Database{Source: "dsn"}},
			Downstream: &Downstream{
				Cards:               &Dependency{BaseURL: "http://cards", RetryCount: 3, FailureThreshold: 3},
				Loans:               &Dependency{BaseURL: "http://loans", RetryCount: 3, FailureThreshold: 3},
				AggregationDeadline: time.Second,
			},
			Events: &Events{Driver: "redis"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Validate(valid()))
	})

	t.Run("missing dsn", func(t *testing.T) {
		bc := valid()
		bc.Data.Database.Source = ""
		err := Validate(bc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data.database.source")
	})

	t.Run("zero retry count", func(t *testing.T) {
		bc := valid()
		bc.Downstream.Cards.RetryCount = 0
		err := Validate(bc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "downstream.cards.retry_count")
	})

	t.Run("amqp without url", func(t *testing.T) {
		bc := valid()
		bc.Events.Driver = "amqp"
		err := Validate(bc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "events.amqp_url")
	})

	t.Run("unknown driver", func(t *testing.T) {
		bc := valid()
		bc.Events.Driver = "kafka"
		err := Validate(bc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "events.driver")
	})

	t.Run("reports every problem", func(t *testing.T) {
		bc := valid()
		bc.Data.Database.Source = ""
		bc.Downstream.AggregationDeadline = 0
		err := Validate(bc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data.database.source")
		assert.Contains(t, err.Error(), "aggregation_deadline")
	})
}
