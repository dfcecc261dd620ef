// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with KURO_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Required settings:
//   - MYSQL_DSN or KURO_DATA_DATABASE_SOURCE: database connection string
//   - KURO_DOWNSTREAM_CARDS_BASE_URL / KURO_DOWNSTREAM_LOANS_BASE_URL (defaults provided)
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("KURO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "KURO_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "KURO_DATA_REDIS_ADDR")
	_ = v.BindEnv("events.amqp_url", "AMQP_URL", "KURO_EVENTS_AMQP_URL")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			HTTP: &Transport{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
			GRPC: &Transport{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: v.GetDuration("server.grpc.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver:      v.GetString("data.database.driver"),
				Source:      v.GetString("data.database.source"),
				AutoMigrate: v.GetBool("data.database.auto_migrate"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				DB:           v.GetInt("data.redis.db"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		Downstream: &Downstream{
			Cards:               dependency(v, "downstream.cards"),
			Loans:               dependency(v, "downstream.loans"),
			AggregationDeadline: v.GetDuration("downstream.aggregation_deadline"),
		},
		Cache: &Cache{
			Size:   v.GetInt("cache.size"),
			TTL:    v.GetDuration("cache.ttl"),
			Remote: v.GetBool("cache.remote"),
		},
		Events: &Events{
			Driver:         v.GetString("events.driver"),
			AMQPURL:        v.GetString("events.amqp_url"),
			Workers:        v.GetInt("events.workers"),
			QueueSize:      v.GetInt("events.queue_size"),
			RetryCount:     v.GetInt("events.retry_count"),
			RetryBackoff:   v.GetDuration("events.retry_backoff"),
			PublishTimeout: v.GetDuration("events.publish_timeout"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
		Metrics: &Metrics{
			Enabled:  v.GetBool("metrics.enabled"),
			Interval: v.GetDuration("metrics.interval"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

func dependency(v *viper.Viper, prefix string) *Dependency {
	return &Dependency{
		BaseURL:          v.GetString(prefix + ".base_url"),
		ProxyURL:         v.GetString(prefix + ".proxy_url"),
		FailureThreshold: v.GetUint32(prefix + ".failure_threshold"),
		OpenDuration:     v.GetDuration(prefix + ".open_duration"),
		RetryCount:       v.GetInt(prefix + ".retry_count"),
		AttemptTimeout:   v.GetDuration(prefix + ".attempt_timeout"),
		RetryBackoff:     v.GetDuration(prefix + ".retry_backoff"),
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 10*time.Second)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", 10*time.Second)

	v.SetDefault("data.database.driver", "mysql")
	v.SetDefault("data.database.auto_migrate", false)

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	for name, url := range map[string]string{
		"cards": "http://cards:9000",
		"loans": "http://loans:8090",
	} {
		prefix := "downstream." + name
		v.SetDefault(prefix+".base_url", url)
		v.SetDefault(prefix+".failure_threshold", 3)
		v.SetDefault(prefix+".open_duration", 10*time.Second)
		v.SetDefault(prefix+".retry_count", 3)
		v.SetDefault(prefix+".attempt_timeout", 1*time.Second)
		v.SetDefault(prefix+".retry_backoff", 100*time.Millisecond)
	}
	v.SetDefault("downstream.aggregation_deadline", 2*time.Second)

	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.remote", false)

	v.SetDefault("events.driver", "redis")
	v.SetDefault("events.workers", 4)
	v.SetDefault("events.queue_size", 1000)
	v.SetDefault("events.retry_count", 3)
	v.SetDefault("events.retry_backoff", 200*time.Millisecond)
	v.SetDefault("events.publish_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.interval", 1*time.Minute)
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing every problem found.
func Validate(bc *Bootstrap) error {
	var problems []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		problems = append(problems, "data.database.source (MYSQL_DSN) is required")
	}

	if bc.Downstream != nil {
		for name, dep := range map[string]*Dependency{"cards": bc.Downstream.Cards, "loans": bc.Downstream.Loans} {
			if dep == nil || dep.BaseURL == "" {
				problems = append(problems, fmt.Sprintf("downstream.%s.base_url is required", name))
				continue
			}
			if dep.RetryCount < 1 {
				problems = append(problems, fmt.Sprintf("downstream.%s.retry_count must be at least 1", name))
			}
			if dep.FailureThreshold < 1 {
				problems = append(problems, fmt.Sprintf("downstream.%s.failure_threshold must be at least 1", name))
			}
		}
		if bc.Downstream.AggregationDeadline <= 0 {
			problems = append(problems, "downstream.aggregation_deadline must be positive")
		}
	}

	if bc.Events != nil {
		switch bc.Events.Driver {
		case "redis", "log":
		case "amqp":
			if bc.Events.AMQPURL == "" {
				problems = append(problems, "events.amqp_url (AMQP_URL) is required for the amqp driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("events.driver %q is not one of redis, amqp, log", bc.Events.Driver))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return nil
}
