package shared

const (
	STREAM_PLAYBACK = "playback"

	TRACK_KIND_CAPTIONS = "captions"

	USER_AGENT = "capsync/1.0 <github.com/capsync/capsync>"
)
