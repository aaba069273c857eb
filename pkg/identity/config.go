package identity

import "time"

const (
	ModeJWT    = "jwt"
	ModeRemote = "remote"
)

type Config struct {
	Mode            string        `env:"AUTH_MODE" envDefault:"jwt"`
	JWTSecret       string        `env:"SUPABASE_JWT_SECRET"`
	Audience        string        `env:"AUTH_AUDIENCE" envDefault:"authenticated"`
	Leeway          time.Duration `env:"AUTH_LEEWAY" envDefault:"30s"`
	SupabaseURL     string        `env:"SUPABASE_URL"`
	SupabaseAnonKey string        `env:"SUPABASE_ANON_KEY"`
	Timeout         time.Duration `env:"AUTH_TIMEOUT" envDefault:"5s"`
}
