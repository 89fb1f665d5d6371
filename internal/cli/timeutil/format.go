// Package timeutil holds shared time formatting for CLI output.
package timeutil

import "time"

// LocalTimeFormat is how timestamps are rendered in CLI tables and
// messages. Reference time: Mon Jan 2 15:04:05 2006.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// Local renders t in the local timezone using LocalTimeFormat.
func Local(t time.Time) string {
	return t.Local().Format(LocalTimeFormat)
}
