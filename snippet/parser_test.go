package snippet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wizardSnippet = `<div style="width: 100%; max-width: 512px;">
<div style="border: 1px solid #000; position: relative; width: 100%; padding: 0;" id="VidPlayerPlaceholder_3884" class="videoplayer">
</div>
<script type="text/javascript" src="//media.example.edu/player/js/7.11.2/jwplayer.js"></script>
<script type="text/javascript">jwplayer.key="UJGcVouk597phvGZtziZMHAb3IRluP27vKFmTIMbWyw=";</script>
<script type="text/javascript">
var p = jwplayer('VidPlayerPlaceholder_3884').setup({
flashplayer: "//media.example.edu/player/jwplayer.flash.swf",
playlist: [
{ title: "", image: "//vod.example.edu/mediaservices/lecture.jpg", sources: [{ file: "//vod.example.edu/hls-vod/lecture.mp4.m3u8"}], tracks: [{ file: "https://vod.example.edu/lecture-captions.vtt", label: "English", kind: "captions"}]}
],
primary: 'html5',
hlshtml: 'true',
width: '100%',
aspectratio: '16:9',
autostart: 'false',
repeat: 'false',
controls: 'true',
rtmp: {
bufferlength: '5'
}
});
p.setVolume(50);
</script></div><!-- Closes video player -->`

func TestParse_WizardSnippet(t *testing.T) {
	parser := NewParser(nil)

	parsed, err := parser.Parse(wizardSnippet)
	require.NoError(t, err)

	assert.Equal(t, "https://media.example.edu/player/js/7.11.2/jwplayer.js", parsed.PlayerSourceURL)
	assert.Equal(t, "UJGcVouk597phvGZtziZMHAb3IRluP27vKFmTIMbWyw=", parsed.PlayerLicenseKey)

	require.Len(t, parsed.Config.Playlist, 1)
	item := parsed.Config.Playlist[0]
	require.Len(t, item.Sources, 1)
	assert.Equal(t, "//vod.example.edu/hls-vod/lecture.mp4.m3u8", item.Sources[0].File)
	require.Len(t, item.Tracks, 1)
	assert.Equal(t, "https://vod.example.edu/lecture-captions.vtt", item.Tracks[0].File)
	assert.Equal(t, "English", item.Tracks[0].Label)
	assert.Equal(t, "captions", item.Tracks[0].Kind)

	// trailing statements after the setup call must not leak into the config
	assert.Equal(t, "html5", parsed.Config.Primary)
	assert.Equal(t, "5", parsed.Config.RTMP.BufferLength)
}

func TestParse_MinimalSnippet(t *testing.T) {
	raw := `<script src="//host/player.js"></script>
<script>jwplayer.key="K";</script>
<script>jwplayer('player').setup({ playlist: [{ title:"", sources:[{file:"a.mp4"}], tracks:[{file:"cues.vtt", label:"", kind:"captions"}] }], primary:'html5' });</script>`

	parsed, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "https://host/player.js", parsed.PlayerSourceURL)
	assert.Equal(t, "K", parsed.PlayerLicenseKey)
	require.NotEmpty(t, parsed.Config.Playlist)
	assert.Equal(t, "cues.vtt", parsed.Config.Playlist[0].Tracks[0].File)
}

func TestParse_AbsoluteSourcePassesThrough(t *testing.T) {
	raw := `<script src="https://cdn.example.com/jwplayer.js"></script>
<script>jwplayer.key="K";</script>
<script>jwplayer('p').setup({ playlist: [{ sources:[{file:"a.mp4"}], tracks:[] }] });</script>`

	parsed, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/jwplayer.js", parsed.PlayerSourceURL)
}

func TestParse_MissingPieces(t *testing.T) {
	source := `<script src="//host/player.js"></script>`
	key := `<script>jwplayer.key="K";</script>`
	setup := `<script>jwplayer('p').setup({ playlist: [{ sources:[{file:"a.mp4"}], tracks:[] }] });</script>`

	tests := map[string]string{
		"no source": key + setup,
		"no key":    source + setup,
		"no setup":  source + key,
		"empty":     "",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewParser(nil).Parse(raw)
			assert.ErrorIs(t, err, ErrUnparseable)
		})
	}
}

func TestParse_EmptyPlaylistRejected(t *testing.T) {
	raw := `<script src="//host/player.js"></script>
<script>jwplayer.key="K";</script>
<script>jwplayer('p').setup({ playlist: [], primary:'html5' });</script>`

	_, err := NewParser(nil).Parse(raw)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParse_BrokenConfigLiteral(t *testing.T) {
	raw := `<script src="//host/player.js"></script>
<script>jwplayer.key="K";</script>
<script>jwplayer('p').setup({ playlist: [{,}] });</script>`

	_, err := NewParser(nil).Parse(raw)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParse_Idempotent(t *testing.T) {
	parser := NewParser(nil)

	first, err := parser.Parse(wizardSnippet)
	require.NoError(t, err)
	second, err := parser.Parse(wizardSnippet)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parse results differ between runs (-first +second):\n%s", diff)
	}
}
