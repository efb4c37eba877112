package podcast

import (
	"regexp"
	"strings"
)

// readingAnnotation matches a reading hint in full-width or ASCII parentheses,
// e.g. 台本（だいほん） or 台本(だいほん).
var readingAnnotation = regexp.MustCompile(`[（(][^）)]+[）)]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanForDisplay strips reading annotations that are only there for speech.
func CleanForDisplay(text string) string {
	return readingAnnotation.ReplaceAllString(text, "")
}

// DownloadFilename is the file name offered when an episode is downloaded.
func DownloadFilename(topic string) string {
	return "podcast_" + whitespaceRun.ReplaceAllString(strings.TrimSpace(topic), "_") + ".wav"
}
