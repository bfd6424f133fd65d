package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	color_extractor "github.com/marekm4/color-extractor"
)

// ExtractPosterContent downloads the poster referenced by a playlist item
// and pulls out its dominant colours for client-side theming.
func ExtractPosterContent(client *http.Client, posterUrl string) ([]byte, string, []string, error) {
	if client == nil {
		client = NewHTTPClient()
	}
	req, err := http.NewRequest("GET", posterUrl, nil)
	if err != nil {
		return []byte{}, "", []string{}, err
	}
	res, err := client.Do(req)
	if err != nil {
		return []byte{}, "", []string{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return []byte{}, "", []string{}, fmt.Errorf("fetching poster %s: unexpected status %s", posterUrl, res.Status)
	}

	var buf bytes.Buffer
	tee := io.TeeReader(res.Body, &buf)

	body, err := io.ReadAll(tee)
	if err != nil {
		return []byte{}, "", []string{}, err
	}

	mimeType := http.DetectContentType(body)

	extension := ""

	switch mimeType {
	case "image/jpeg":
		extension = "jpeg"
	case "image/png":
		extension = "png"
	}

	var domColours []string

	img, _, err := image.Decode(&buf)
	if err != nil {
		return body, extension, domColours, nil
	}
	colours := color_extractor.ExtractColors(img)
	for _, c := range colours {
		domColours = append(domColours, colorToHexString(c))
	}

	return body, extension, domColours, nil
}

func colorToHexString(c color.Color) string {
	r, g, b, a := c.RGBA()
	rgba := color.RGBA{uint8(r), uint8(g), uint8(b), uint8(a)}
	return fmt.Sprintf("#%.2x%.2x%.2x", rgba.R, rgba.G, rgba.B)
}
