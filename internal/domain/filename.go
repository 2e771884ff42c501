package domain

import (
	"regexp"
	"strings"
)

var illegalFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]+`)

// SanitizeTitle strips characters that are illegal in file names. Two titles
// that differ only in those characters map to the same name.
func SanitizeTitle(title string) string {
	result := strings.TrimSpace(illegalFilenameChars.ReplaceAllString(title, ""))
	if result == "" {
		return "untitled"
	}
	return result
}
