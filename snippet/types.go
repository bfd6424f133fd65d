package snippet

// The types below mirror the declarative setup object that the video
// platform's wizard generates. Fields we don't act on (aspect ratio, rtmp
// buffering and so on) are still decoded so the config can round-trip back
// to the player untouched.

type Source struct {
	File string `json:"file"`
}

type Track struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type PlaylistItem struct {
	Title   string   `json:"title"`
	Image   string   `json:"image,omitempty"`
	Sources []Source `json:"sources"`
	Tracks  []Track  `json:"tracks"`
}

type RTMPConfig struct {
	BufferLength string `json:"bufferlength,omitempty"`
}

type PlayerConfig struct {
	FlashPlayer string         `json:"flashplayer,omitempty"`
	Playlist    []PlaylistItem `json:"playlist"`
	Primary     string         `json:"primary,omitempty"`
	HLSHTML     string         `json:"hlshtml,omitempty"`
	Width       string         `json:"width,omitempty"`
	AspectRatio string         `json:"aspectratio,omitempty"`
	Autostart   string         `json:"autostart,omitempty"`
	Repeat      string         `json:"repeat,omitempty"`
	Controls    string         `json:"controls,omitempty"`
	RTMP        RTMPConfig     `json:"rtmp,omitempty"`
}

// ParsedEmbed is the all-or-nothing result of parsing a pasted snippet.
// Every field is guaranteed non-empty; a snippet missing any of the three
// is rejected outright rather than returned partially filled.
type ParsedEmbed struct {
	PlayerSourceURL  string       `json:"player_source_url"`
	PlayerLicenseKey string       `json:"player_license_key"`
	Config           PlayerConfig `json:"config"`
}

// Tracks returns the subtitle tracks of the leading playlist item, which is
// the only item the caption list follows.
func (e ParsedEmbed) Tracks() []Track {
	if len(e.Config.Playlist) == 0 {
		return nil
	}
	return e.Config.Playlist[0].Tracks
}
