package utils

import (
	"time"
)

// Game constants
const (
	// MaxDrawsPerSession is the number of cards a session must hold before it can be finalized
	MaxDrawsPerSession = 5

	// GoodFallbackLabel is snapshotted when the catalog has no active GOOD card
	GoodFallbackLabel = "Bonne carte"

	// BadFallbackLabel is snapshotted when the catalog has no active BAD card
	BadFallbackLabel = "Mauvaise carte"

	// DefaultTopHour is reported when an owner has no finalized sessions
	DefaultTopHour = 12

	// StatsMonthsWindow is how many recent months the monthly breakdown keeps
	StatsMonthsWindow = 6

	// RecentSessionsLimit bounds the recent sessions list in statistics
	RecentSessionsLimit = 10

	// TopTagsLimit bounds the top tags list in statistics
	TopTagsLimit = 10
)

// Pagination constants
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
	MaxHistoryPage      = 1_000_000
)

// HTTP constants
const (
	// OwnerKeyHeader carries the opaque caller identifier
	OwnerKeyHeader = "X-Owner-Key"

	// OwnerKeyMaxLength caps the trimmed owner key in bytes
	OwnerKeyMaxLength = 512

	// OwnerKeyLocal is the fiber locals key holding the trimmed owner key
	OwnerKeyLocal = "owner_key"

	// RequestTimeout bounds every flow call started from a handler
	RequestTimeout = 30 * time.Second
)
