package internal

import (
	"net/url"
	"regexp"
	"strings"
)

// UploadKey is the lesson identity recovered from a raw upload's storage key.
type UploadKey struct {
	CourseID  string
	LessonID  string
	Extension string
}

// UploadKeyParser matches keys of the form {rawPrefix}/{courseId}/{lessonId}.{ext}.
type UploadKeyParser struct {
	rawPrefix string
	pattern   *regexp.Regexp
}

// NewUploadKeyParser returns a parser for rawPrefix, or DefaultRawPrefix when
// rawPrefix is empty.
func NewUploadKeyParser(rawPrefix string) *UploadKeyParser {
	rawPrefix = strings.Trim(rawPrefix, "/")
	if rawPrefix == "" {
		rawPrefix = DefaultRawPrefix
	}
	return &UploadKeyParser{
		rawPrefix: rawPrefix,
		pattern:   regexp.MustCompile(`^` + regexp.QuoteMeta(rawPrefix) + `/([^/]+)/([^/]+)\.([^./]+)$`),
	}
}

// Parse returns the lesson identity for key. S3 event notifications deliver
// keys form-encoded, so the key is unescaped with '+' read as a space first.
// A key that cannot be decoded or does not follow the convention reports
// ok == false.
func (p *UploadKeyParser) Parse(key string) (UploadKey, bool) {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return UploadKey{}, false
	}
	m := p.pattern.FindStringSubmatch(decoded)
	if m == nil {
		return UploadKey{}, false
	}
	return UploadKey{CourseID: m[1], LessonID: m[2], Extension: m[3]}, true
}

// Key builds the raw upload key for a lesson. It is the inverse of Parse for
// identifiers that need no escaping.
func (p *UploadKeyParser) Key(courseID, lessonID, extension string) string {
	return p.rawPrefix + "/" + courseID + "/" + lessonID + "." + extension
}
