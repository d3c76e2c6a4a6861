package tool

import (
	"fmt"
	"net/url"
	"strings"
)

const APIPrefix = "/api/v1"

// BaseURL returns the externally reachable base URL of this server. A configured public
// URL wins; otherwise the first LAN address is used so links open from other devices.
func BaseURL(public string, port int) string {
	if public != "" {
		return strings.TrimRight(public, "/")
	}
	host := LANAddress()
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// BuildDownloadURL builds the /download/:id URL.
func BuildDownloadURL(base, id string) string {
	return base + APIPrefix + "/download/" + url.PathEscape(id)
}

// BuildLogURL builds the /download/:id/log URL.
func BuildLogURL(base, id string) string {
	return BuildDownloadURL(base, id) + "/log"
}
