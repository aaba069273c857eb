// Package config loads typed configuration structs from the environment using
// caarlos0/env struct tags, optionally seeding the environment from dotenv
// files via joho/godotenv.
//
// Each package that needs configuration declares its own struct (pg.Config,
// redis.Config, httpserver.Config and so on) and the binary composes them:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
// Load keeps no state between calls; callers own the loaded values.
package config
