package internal_test

import (
	"testing"

	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/lesson-video-pipeline/internal"
)

func TestUploadKeyParser(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	parser := internal.NewUploadKeyParser(internal.DefaultRawPrefix)

	tests := []struct {
		loc    exam.Loc
		name   string
		key    string
		want   internal.UploadKey
		wantOK bool
	}{
		{
			loc:    exam.Here(),
			name:   "plain key",
			key:    "uploads/raw/course-1/lesson-1.mp4",
			want:   internal.UploadKey{CourseID: "course-1", LessonID: "lesson-1", Extension: "mp4"},
			wantOK: true,
		},
		{
			loc:    exam.Here(),
			name:   "percent encoded",
			key:    "uploads/raw/course%2D1/lesson%2D1.mp4",
			want:   internal.UploadKey{CourseID: "course-1", LessonID: "lesson-1", Extension: "mp4"},
			wantOK: true,
		},
		{
			loc:    exam.Here(),
			name:   "plus decodes to space",
			key:    "uploads/raw/intro+course/first+lesson.mov",
			want:   internal.UploadKey{CourseID: "intro course", LessonID: "first lesson", Extension: "mov"},
			wantOK: true,
		},
		{
			loc:    exam.Here(),
			name:   "lesson id keeps inner dots",
			key:    "uploads/raw/c1/part.1.final.mkv",
			want:   internal.UploadKey{CourseID: "c1", LessonID: "part.1.final", Extension: "mkv"},
			wantOK: true,
		},
		{
			loc:  exam.Here(),
			name: "wrong prefix",
			key:  "uploads/processed/c1/l1.mp4",
		},
		{
			loc:  exam.Here(),
			name: "missing extension",
			key:  "uploads/raw/c1/l1",
		},
		{
			loc:  exam.Here(),
			name: "nested directory",
			key:  "uploads/raw/c1/extra/l1.mp4",
		},
		{
			loc:  exam.Here(),
			name: "empty course",
			key:  "uploads/raw//l1.mp4",
		},
		{
			loc:  exam.Here(),
			name: "trailing dot",
			key:  "uploads/raw/c1/l1.",
		},
		{
			loc:  exam.Here(),
			name: "invalid escape",
			key:  "uploads/raw/c1/l1%zz.mp4",
		},
		{
			loc:  exam.Here(),
			name: "empty key",
			key:  "",
		},
	}
	for _, tt := range tests {
		e.Run(tt.name, func(e exam.E) {
			e.Log("Running test at", tt.loc)
			got, ok := parser.Parse(tt.key)
			exam.Equal(e, env, tt.wantOK, ok)
			exam.Equal(e, env, tt.want, got)
		})
	}
}

func TestUploadKeyParserCustomPrefix(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	parser := internal.NewUploadKeyParser("/incoming/")

	got, ok := parser.Parse("incoming/c9/l9.webm")
	exam.Equal(e, env, true, ok)
	exam.Equal(e, env, internal.UploadKey{CourseID: "c9", LessonID: "l9", Extension: "webm"}, got)

	_, ok = parser.Parse("uploads/raw/c9/l9.webm")
	exam.Equal(e, env, false, ok)

	exam.Equal(e, env, "incoming/c9/l9.webm", parser.Key("c9", "l9", "webm"))
}

func TestUploadKeyRoundTrip(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	parser := internal.NewUploadKeyParser("")

	for _, id := range [][2]string{{"course-1", "lesson-1"}, {"a", "b"}, {"c_1", "l.v2"}} {
		got, ok := parser.Parse(parser.Key(id[0], id[1], "mp4"))
		exam.Equal(e, env, true, ok)
		exam.Equal(e, env, internal.UploadKey{CourseID: id[0], LessonID: id[1], Extension: "mp4"}, got)
	}
}
