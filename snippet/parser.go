package snippet

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnparseable is returned whenever a pasted snippet is missing any of the
// three things we need from it: a player script source, a license key and a
// setup config. Callers should treat it as "no player found" rather than a
// fatal condition.
var ErrUnparseable = errors.New("unable to parse player embed")

var (
	sourcePattern     = regexp.MustCompile(`src="([^"]*?\.js)"`)
	licenseKeyPattern = regexp.MustCompile(`jwplayer\.key\s*=\s*"([^"]+)"`)
	// Greedy on purpose: the setup call can contain nested object literals
	// (rtmp buffering etc.) so we want the final "});" in the script, not
	// the first closing brace.
	setupPattern = regexp.MustCompile(`(?s)\.setup\((.*)\}\s*\)\s*;`)
)

// Parser extracts a structured player definition out of the raw HTML blob
// generated by the video platform's setup wizard. It is not a general
// HTML/JS parser; it leans on the script layout the wizard always produces.
type Parser struct {
	evaluator Evaluator
}

func NewParser(evaluator Evaluator) *Parser {
	if evaluator == nil {
		evaluator = NewEvaluator()
	}
	return &Parser{evaluator: evaluator}
}

func (p *Parser) Parse(rawHTML string) (ParsedEmbed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ParsedEmbed{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var sourceURL, licenseKey, setupLiteral string

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			// Anchoring on the attribute value rather than a regex over
			// the whole blob avoids over-matching trailing characters
			// after ".js".
			if sourceURL == "" && strings.HasSuffix(src, ".js") {
				sourceURL = normalizeSourceURL(src)
			}
			return
		}
		text := s.Text()
		if licenseKey == "" {
			if m := licenseKeyPattern.FindStringSubmatch(text); m != nil {
				licenseKey = m[1]
			}
		}
		if setupLiteral == "" {
			if m := setupPattern.FindStringSubmatch(text); m != nil {
				// The capture stops just short of the closing brace so
				// trailing statements like p.setVolume(50); stay out.
				setupLiteral = m[1] + "}"
			}
		}
	})

	// Wizard output is not always a well-formed document, so anything the
	// script-element walk missed gets a second chance as plain text.
	if sourceURL == "" {
		if m := sourcePattern.FindStringSubmatch(rawHTML); m != nil {
			sourceURL = normalizeSourceURL(m[1])
		}
	}
	if licenseKey == "" {
		if m := licenseKeyPattern.FindStringSubmatch(rawHTML); m != nil {
			licenseKey = m[1]
		}
	}
	if setupLiteral == "" {
		if m := setupPattern.FindStringSubmatch(rawHTML); m != nil {
			setupLiteral = m[1] + "}"
		}
	}

	if sourceURL == "" || licenseKey == "" || setupLiteral == "" {
		return ParsedEmbed{}, ErrUnparseable
	}

	obj, err := p.evaluator.EvaluateObjectLiteral(setupLiteral)
	if err != nil {
		return ParsedEmbed{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	config, err := decodeConfig(obj)
	if err != nil {
		return ParsedEmbed{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	if len(config.Playlist) == 0 || len(config.Playlist[0].Sources) == 0 {
		return ParsedEmbed{}, ErrUnparseable
	}

	return ParsedEmbed{
		PlayerSourceURL:  sourceURL,
		PlayerLicenseKey: licenseKey,
		Config:           config,
	}, nil
}

// normalizeSourceURL upgrades the protocol-relative URLs the wizard emits
// to https. Fully qualified URLs pass through untouched.
func normalizeSourceURL(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

func decodeConfig(obj map[string]interface{}) (PlayerConfig, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return PlayerConfig{}, fmt.Errorf("re-encoding config: %v", err)
	}
	var config PlayerConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return PlayerConfig{}, fmt.Errorf("decoding config: %v", err)
	}
	return config, nil
}
