// Package config reads service settings by dotted key, for example
// "modules.varsling.batch.window_minutes".
package config

import (
	"io"
	"time"
)

// Config is the read side of the service configuration. Missing keys read as
// the zero value, so callers apply their own defaults.
type Config interface {
	io.Closer

	// GetSecond reads an integer number of seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads an integer number of minutes.
	GetMinute(key string) time.Duration

	GetInt(key string) int
	GetInt32(key string) int32
	GetUint64(key string) uint64
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetString(key string) string

	// GetArray reads a list. Both a YAML sequence and a comma separated
	// string ("a,b") are accepted, so lists can be overridden from the
	// environment. Blank elements are dropped.
	GetArray(key string) []string
}
