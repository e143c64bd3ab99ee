// Package hashtags extracts and normalizes #tags from post text.
package hashtags

import (
	"regexp"
	"strings"
)

// MaxTagLength bounds a single tag, excluding the leading '#'.
const MaxTagLength = 64

var tagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Extract returns the distinct lower-cased tags in content, in order of first
// appearance. Tags longer than MaxTagLength are dropped.
func Extract(content string) []string {
	matches := tagPattern.FindAllStringSubmatch(content, -1)
	tags := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if len([]rune(tag)) > MaxTagLength {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// Normalize turns user input such as "#Go" into the stored form "go".
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
