package cache

import "fmt"

// AvailabilityYearKey is the cache key for one year's availability grid.
// Dropped whenever a bucket is upserted or decremented.
func AvailabilityYearKey(year int) string {
	return fmt.Sprintf("availability:%d", year)
}
