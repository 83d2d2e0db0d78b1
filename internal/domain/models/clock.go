// internal/domain/models/clock.go
package models

import "time"

// Millis converts t to epoch milliseconds, the unit every stored timestamp uses.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// NowMillis is Millis(time.Now()).
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
