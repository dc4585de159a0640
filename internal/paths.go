package internal

import (
	"errors"
	"fmt"
	"regexp"
)

var ErrMalformedOutputPrefix = errors.New("malformed output prefix")

const outputRoot = "courses"

var outputPrefixPattern = regexp.MustCompile(`^` + outputRoot + `/([^/]+)/([^/]+)$`)

// GenerateOutputPrefix returns the storage prefix MediaConvert writes a
// lesson's HLS output under.
func GenerateOutputPrefix(courseID, lessonID string) string {
	return outputRoot + "/" + courseID + "/" + lessonID
}

// GenerateManifestKey returns the key of the master playlist for a lesson.
// It always equals GenerateOutputPrefix(courseID, lessonID) + "/" + lessonID + ".m3u8".
func GenerateManifestKey(courseID, lessonID string) string {
	return GenerateOutputPrefix(courseID, lessonID) + "/" + manifestName(lessonID)
}

// GenerateCoursePrefix returns the prefix shared by every lesson of a course.
func GenerateCoursePrefix(courseID string) string {
	return outputRoot + "/" + courseID + "/"
}

// ParseOutputPrefix recovers the lesson identity from an output prefix
// echoed back in job metadata.
func ParseOutputPrefix(prefix string) (courseID, lessonID string, err error) {
	m := outputPrefixPattern.FindStringSubmatch(prefix)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedOutputPrefix, prefix)
	}
	return m[1], m[2], nil
}

func manifestName(lessonID string) string {
	return lessonID + ".m3u8"
}
