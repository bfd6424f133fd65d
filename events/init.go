package events

import "github.com/r3labs/sse/v2"

var Server *sse.Server

func Init() {
	server := sse.New()
	server.AutoReplay = false
	Server = server
}

// SessionStream names the per-session event stream that caption list
// clients subscribe to alongside the shared playback stream.
func SessionStream(sessionID string) string {
	return "session:" + sessionID
}
