// Package frame answers questions about the frame the widget is rendered in:
// whether it is embedded in a host page and where that page is served from.
package frame

import (
	"net"
	"net/url"
	"strings"
)

// Window is the view of the hosting environment the widget runs in.
type Window interface {
	// IsTop reports whether the widget is its own top-level window. An error
	// means the check itself was refused (cross-origin access).
	IsTop() (bool, error)

	// Referrer is the URL of the page that loaded the widget, if any.
	Referrer() string

	// Unloading is closed when the hosting page is about to unload.
	// A nil channel means the window never signals unload.
	Unloading() <-chan struct{}
}

// Context wraps a Window with the embedding queries the bridge needs.
type Context struct {
	win Window
}

// New creates a frame context for w
func New(w Window) *Context {
	return &Context{win: w}
}

// IsEmbedded reports whether the widget runs inside another frame.
// A refused check counts as embedded so origin validation is never skipped.
func (c *Context) IsEmbedded() bool {
	if c == nil || c.win == nil {
		return false
	}
	top, err := c.win.IsTop()
	if err != nil {
		return true
	}
	return !top
}

// ParentOrigin derives the host page's origin from the referrer.
func (c *Context) ParentOrigin() (string, bool) {
	if !c.IsEmbedded() {
		return "", false
	}
	origin := ExtractOrigin(c.win.Referrer())
	return origin, origin != ""
}

// Unloading forwards the window's unload signal
func (c *Context) Unloading() <-chan struct{} {
	if c == nil || c.win == nil {
		return nil
	}
	return c.win.Unloading()
}

// ExtractOrigin returns the serialised origin of rawURL the way a browser
// does: lowercase scheme and host, default port dropped. It returns "" when
// the URL is empty or has no scheme and host.
func ExtractOrigin(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == defaultPorts[scheme] {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}
