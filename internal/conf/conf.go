package conf

import "time"

// Bootstrap is the root configuration of the service.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	Downstream *Downstream
	Cache      *Cache
	Events     *Events
	Log        *Log
	Metrics    *Metrics
}

// Server holds transport settings.
type Server struct {
	HTTP *Transport
	GRPC *Transport
}

// Transport is a listener configuration shared by HTTP and gRPC.
type Transport struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds storage settings.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database configures the gorm connection. Only the "mysql" driver is supported.
type Database struct {
	Driver      string
	Source      string
	AutoMigrate bool
}

// Redis configures the shared Redis client.
type Redis struct {
	Network      string
	Addr         string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Downstream configures the optional dependencies of the customer view.
type Downstream struct {
	Cards               *Dependency
	Loans               *Dependency
	AggregationDeadline time.Duration
}

// Dependency configures one downstream service and its resilience policy.
type Dependency struct {
	BaseURL          string
	ProxyURL         string
	FailureThreshold uint32
	OpenDuration     time.Duration
	RetryCount       int
	AttemptTimeout   time.Duration
	RetryBackoff     time.Duration
}

// Cache configures the aggregated view cache.
type Cache struct {
	Size   int
	TTL    time.Duration
	Remote bool
}

// Events configures the event publisher and its bus.
type Events struct {
	Driver         string
	AMQPURL        string
	Workers        int
	QueueSize      int
	RetryCount     int
	RetryBackoff   time.Duration
	PublishTimeout time.Duration
}

// Log configures zap.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Metrics configures the otel meter provider.
type Metrics struct {
	Enabled  bool
	Interval time.Duration
}
