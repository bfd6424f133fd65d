package subtitles

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

type CueType string

const (
	// TypeHeader marks non-cue artifacts like the WEBVTT preamble or NOTE
	// blocks. They ride along in the parsed sequence but are excluded from
	// display, search and active-cue matching.
	TypeHeader CueType = "header"
	TypeCue    CueType = "cue"
)

// Cue is a single timed subtitle entry. Cues keep their file order, which
// is assumed (not enforced) to be non-decreasing by start time. A cue with
// StartMs > EndMs is tolerated; it just never becomes active.
type Cue struct {
	Type    CueType `json:"type"`
	StartMs int     `json:"start_ms"`
	EndMs   int     `json:"end_ms"`
	Text    string  `json:"text"`
}

// Parse reads SRT or WebVTT-style text into an ordered cue sequence.
// Parsing is best effort: a malformed block is skipped, never fatal, so a
// partially broken file still yields whatever cues could be read.
func Parse(text string) []Cue {
	var cues []Cue

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var block []string
	flush := func() {
		if len(block) == 0 {
			return
		}
		if cue, ok := parseBlock(block); ok {
			cues = append(cues, cue)
		}
		block = block[:0]
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()

	return cues
}

func parseBlock(lines []string) (Cue, bool) {
	first := strings.TrimSpace(lines[0])

	if strings.HasPrefix(first, "WEBVTT") ||
		strings.HasPrefix(first, "NOTE") ||
		strings.HasPrefix(first, "STYLE") ||
		strings.HasPrefix(first, "REGION") {
		return Cue{Type: TypeHeader, Text: strings.Join(lines, "\n")}, true
	}

	// SRT blocks lead with a numeric counter; WebVTT blocks may lead with a
	// free-form cue identifier. Either way the timing line is what matters.
	idx := 0
	if !strings.Contains(lines[idx], "-->") {
		idx++
	}
	if idx >= len(lines) || !strings.Contains(lines[idx], "-->") {
		return Cue{}, false
	}

	startMs, endMs, err := parseTimingLine(lines[idx])
	if err != nil {
		return Cue{}, false
	}

	text := strings.TrimSpace(strings.Join(lines[idx+1:], "\n"))
	if text == "" {
		return Cue{}, false
	}

	return Cue{Type: TypeCue, StartMs: startMs, EndMs: endMs, Text: text}, true
}

func parseTimingLine(line string) (int, int, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("no timing arrow in %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// WebVTT allows cue settings (position, align) after the end timestamp
	end := strings.TrimSpace(parts[1])
	if i := strings.IndexAny(end, " \t"); i > 0 {
		end = end[:i]
	}
	endMs, err := parseTimestamp(end)
	if err != nil {
		return 0, 0, err
	}
	return start, endMs, nil
}

// parseTimestamp accepts both the SRT comma form (00:01:02,345) and the
// WebVTT dot form with optional hours (01:02.345).
func parseTimestamp(ts string) (int, error) {
	ts = strings.ReplaceAll(ts, ",", ".")
	segments := strings.Split(ts, ":")

	var hours, minutes int
	var secondsPart string
	switch len(segments) {
	case 3:
		h, err := strconv.Atoi(segments[0])
		if err != nil {
			return 0, fmt.Errorf("bad hours in %q", ts)
		}
		m, err := strconv.Atoi(segments[1])
		if err != nil {
			return 0, fmt.Errorf("bad minutes in %q", ts)
		}
		hours, minutes, secondsPart = h, m, segments[2]
	case 2:
		m, err := strconv.Atoi(segments[0])
		if err != nil {
			return 0, fmt.Errorf("bad minutes in %q", ts)
		}
		minutes, secondsPart = m, segments[1]
	default:
		return 0, fmt.Errorf("unrecognised timestamp %q", ts)
	}

	secs := strings.SplitN(secondsPart, ".", 2)
	seconds, err := strconv.Atoi(secs[0])
	if err != nil {
		return 0, fmt.Errorf("bad seconds in %q", ts)
	}
	millis := 0
	if len(secs) == 2 {
		frac := secs[1]
		if len(frac) > 3 {
			frac = frac[:3]
		}
		for len(frac) < 3 {
			frac += "0"
		}
		millis, err = strconv.Atoi(frac)
		if err != nil {
			return 0, fmt.Errorf("bad milliseconds in %q", ts)
		}
	}

	return ((hours*60+minutes)*60+seconds)*1000 + millis, nil
}
