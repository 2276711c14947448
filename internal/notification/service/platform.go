package service

import (
	"strings"

	"github.com/mssola/useragent"
)

// PlatformLabel summarises a User-Agent as "<browser> on <os>", prefixed with
// "mobile" for handsets. An empty header yields "unknown".
func PlatformLabel(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}

	browser, _ := ua.Browser()
	os := ua.OS()
	var b strings.Builder
	if ua.Mobile() {
		b.WriteString("mobile ")
	}
	if browser == "" {
		browser = "browser"
	}
	b.WriteString(browser)
	if os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	return b.String()
}
