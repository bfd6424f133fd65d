package utils

import (
	"net/http"

	"github.com/capsync/capsync/shared"
)

// UARoundtripper stamps our user agent onto every outgoing request so
// upstream hosts can tell who is fetching their scripts and subtitle files.
type UARoundtripper struct {
	RT http.RoundTripper
}

func (uart *UARoundtripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("User-Agent", shared.USER_AGENT)
	rt := uart.RT
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &UARoundtripper{},
	}
}
