package cube

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeURI rewrites a secure-scheme dataset identifier to the insecure scheme
// the catalog publishes its canonical URIs under. Anything else passes through.
func NormalizeURI(uri string) string {
	if strings.HasPrefix(uri, "https") {
		return "http" + uri[len("https"):]
	}
	return uri
}

// CleanLabel strips every character outside [A-Za-z0-9].
func CleanLabel(label string) string {
	return nonAlnum.ReplaceAllString(label, "")
}

// LocalName returns the last path or fragment segment of a URI.
func LocalName(uri string) string {
	trimmed := strings.TrimRight(uri, "/#")
	if i := strings.LastIndexAny(trimmed, "/#"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
