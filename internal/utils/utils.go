package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Data channel buffering thresholds.
const (
	HighWaterMark = 1 * 1024 * 1024 // pause sending above this
	LowWaterMark  = 256 * 1024      // resume below this

	SendTimeout   = 30 * time.Second
	SignalTimeout = 30 * time.Second
)

// FormatSize formats bytes to human readable string
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// GetUniqueFilename returns a unique filename by appending (1), (2), etc. if file exists
func GetUniqueFilename(filename string) string {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return filename
	}

	ext := filepath.Ext(filename)
	nameWithoutExt := filename[:len(filename)-len(ext)]

	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s (%d)%s", nameWithoutExt, counter, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// FormatClock renders a unix-millisecond timestamp as local HH:MM.
func FormatClock(ms int64) string {
	if ms <= 0 {
		return "--:--"
	}
	return time.UnixMilli(ms).Format("15:04")
}

// TruncateMiddle shortens s to max runes, keeping both ends.
func TruncateMiddle(s string, max int) string {
	r := []rune(s)
	if max < 5 || len(r) <= max {
		return s
	}
	keep := (max - 3) / 2
	return string(r[:keep]) + "..." + string(r[len(r)-(max-3-keep):])
}
