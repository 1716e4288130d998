package main

import (
	"strings"

	"github.com/pkg/browser"
)

// BrowserOpener opens a URL in the default browser.
type BrowserOpener interface {
	Open(url string) error
}

type systemBrowser struct{}

func (systemBrowser) Open(url string) error {
	return browser.OpenURL(url)
}

// normalizeURL prefixes https:// unless the URL already names http or https.
func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}
