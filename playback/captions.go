package playback

import (
	"strings"

	"github.com/capsync/capsync/subtitles"
)

// FilterState is owned by the caption list view alone. It is ephemeral:
// whenever the cue sequence is replaced by a track change it resets to an
// empty query with auto-scroll off.
type FilterState struct {
	Query      string `json:"query"`
	AutoScroll bool   `json:"auto_scroll"`
}

func (f *FilterState) Reset() {
	*f = FilterState{}
}

// CaptionCue is one visible entry in the caption list.
type CaptionCue struct {
	StartMs  int    `json:"start_ms"`
	EndMs    int    `json:"end_ms"`
	Text     string `json:"text"`
	Timecode string `json:"timecode"`
	Active   bool   `json:"active"`
}

// CaptionView is what the caption list renders from: the filtered cues,
// which of them are active, and the auto-scroll target.
type CaptionView struct {
	Filter FilterState  `json:"filter"`
	Cues   []CaptionCue `json:"cues"`
	// ActiveIndices are positions within Cues. Overlapping cues can all be
	// active at once; no exclusivity is enforced.
	ActiveIndices []int `json:"active_indices"`
	// AutoScrollTarget is the index within Cues whose top edge the viewport
	// should align to, or -1 when auto-scroll has nowhere to go. The first
	// active visible cue wins.
	AutoScrollTarget int `json:"auto_scroll_target"`
}

func buildCaptionView(cues []subtitles.Cue, filter FilterState, currentTimeMs int) CaptionView {
	view := CaptionView{
		Filter:           filter,
		Cues:             []CaptionCue{},
		ActiveIndices:    []int{},
		AutoScrollTarget: -1,
	}

	query := strings.ToLower(filter.Query)

	for _, cue := range cues {
		if cue.Type == subtitles.TypeHeader {
			continue
		}
		if !strings.Contains(strings.ToLower(cue.Text), query) {
			continue
		}
		active := cueActive(cue, currentTimeMs)
		view.Cues = append(view.Cues, CaptionCue{
			StartMs:  cue.StartMs,
			EndMs:    cue.EndMs,
			Text:     cue.Text,
			Timecode: subtitles.Timecode(cue.StartMs),
			Active:   active,
		})
		if active {
			idx := len(view.Cues) - 1
			view.ActiveIndices = append(view.ActiveIndices, idx)
			if filter.AutoScroll && view.AutoScrollTarget == -1 {
				view.AutoScrollTarget = idx
			}
		}
	}

	return view
}

// cueActive reports whether playback currently sits inside the cue. A
// malformed cue with start after end can never match.
func cueActive(cue subtitles.Cue, currentTimeMs int) bool {
	return currentTimeMs >= cue.StartMs && currentTimeMs <= cue.EndMs
}

// IsClick separates a caption click from a text-selection drag. Only a
// pointer that went down and came up on the same screen coordinates counts
// as a click; any measurable movement suppresses the seek.
func IsClick(downX, downY, upX, upY int) bool {
	return downX == upX && downY == upY
}
