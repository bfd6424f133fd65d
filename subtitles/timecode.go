package subtitles

import "fmt"

// Timecode renders a cue offset as HH:MM:SS for the caption list. The
// fractional part is dropped on purpose; the list shows second granularity.
func Timecode(ms int) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
