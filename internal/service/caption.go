package service

import (
	"regexp"
	"strings"
)

const hashtagsPerLine = 4

// Generated captions sometimes carry the image prompt as a trailing section.
var imagePromptSection = regexp.MustCompile(`(?is)(\*\*)?\s*(görsel\s+prompu|görsel\s+prompt|image\s+prompt)\s*(\*\*)?\s*:.*`)

// StripImagePrompt removes any image-prompt heading and everything after it.
func StripImagePrompt(caption string) string {
	return strings.TrimSpace(imagePromptSection.ReplaceAllString(caption, ""))
}

// NormalizeHashtags prefixes each tag with '#' and drops blanks and duplicates.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		tag = strings.Join(strings.Fields(tag), "")
		if tag == "" || tag == "#" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// FormatCaption builds the text sent to the platform: the cleaned caption,
// a blank line, then hashtags four to a line.
func FormatCaption(caption string, hashtags []string) string {
	text := StripImagePrompt(caption)
	tags := NormalizeHashtags(hashtags)
	if len(tags) == 0 {
		return text
	}

	lines := make([]string, 0, len(tags)/hashtagsPerLine+1)
	for i := 0; i < len(tags); i += hashtagsPerLine {
		end := min(i+hashtagsPerLine, len(tags))
		lines = append(lines, strings.Join(tags[i:end], " "))
	}

	if text == "" {
		return strings.Join(lines, "\n")
	}
	return text + "\n\n" + strings.Join(lines, "\n")
}
