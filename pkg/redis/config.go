package redis

import "time"

// Config holds Redis connection and event ledger settings.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	// EventKeyPrefix namespaces webhook event keys.
	EventKeyPrefix string `env:"REDIS_EVENT_PREFIX" envDefault:"petvoice:webhook:"`
	// ProcessingTTL bounds how long a crashed worker can hold an event.
	ProcessingTTL time.Duration `env:"REDIS_EVENT_PROCESSING_TTL" envDefault:"2m"`
	// DoneTTL must outlast the provider's redelivery window.
	DoneTTL time.Duration `env:"REDIS_EVENT_DONE_TTL" envDefault:"720h"`
}
