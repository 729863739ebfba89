// Package device turns User-Agent headers into the labels shown in session listings.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	unknownDevice  = "Unknown Device"
	unknownBrowser = "Unknown Browser"
	unknownOS      = "Unknown OS"

	// MaxDisplayNameLength matches sessions.device_display_name.
	MaxDisplayNameLength = 255
)

// ParseUserAgent returns a "<Browser> on <OS>" label, or "Unknown Device"
// when no header was sent.
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	browser = clean(browser)
	if browser == "" {
		browser = unknownBrowser
	}

	label := browser + " on " + osName(ua)
	if len(label) > MaxDisplayNameLength {
		label = strings.TrimSpace(label[:MaxDisplayNameLength])
	}
	return label
}

func osName(ua *useragent.UserAgent) string {
	// Apple handhelds report the device as the platform; it reads better than "iPhone OS".
	switch platform := clean(ua.Platform()); platform {
	case "iPhone", "iPad", "iPod", "iPod touch":
		return platform
	}
	if name := clean(ua.OSInfo().Name); name != "" {
		return name
	}
	if name := clean(ua.OS()); name != "" {
		return name
	}
	return unknownOS
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
