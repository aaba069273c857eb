package billing

type Config struct {
	CheckRateLimit      float64 `env:"CHECK_RATE_LIMIT" envDefault:"1"`
	CheckRateBurst      int     `env:"CHECK_RATE_BURST" envDefault:"5"`
	CheckLimiterSize    int     `env:"CHECK_LIMITER_CACHE_SIZE" envDefault:"10000"`
	MaxBodyBytes        int64   `env:"HTTP_MAX_BODY_BYTES" envDefault:"65536"`
	WebhookMaxBodyBytes int64   `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"524288"`
}
