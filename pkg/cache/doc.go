// Package cache provides a generic in-memory LRU cache with per-entry TTL.
//
// Instances are created explicitly and passed to their consumers; there is no
// package-level cache. Time is read through an injectable Clock so that expiry
// can be tested without sleeping.
//
//	prices := cache.NewTTL[string, int64](512, 15*time.Minute)
//	prices.Set("price_123", 99)
//	amount, ok := prices.Get("price_123")
package cache
