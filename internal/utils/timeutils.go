package utils

import "time"

// TimeFormats is the fixed ordered list of layouts tried when coercing
// string columns to temporal values. Order matters: the first layout that
// parses a non-all-null result wins.
var TimeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"20060102",
}

// DurationDays converts a pair of timestamps into a day count.
func DurationDays(start, end time.Time) float64 {
	if end.Before(start) {
		start, end = end, start
	}
	return end.Sub(start).Hours() / 24
}
