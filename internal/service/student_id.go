package service

import (
	"strconv"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

const studentIDSuffixLength = 4

// go-nanoid reads (length/5)*8 random bytes per step, so generators shorter
// than 5 never produce output. Generate 5 and keep the first 4.
const studentIDGeneratorLength = 5

var studentIDSuffix = func() func() string {
	gen, err := nanoid.CustomASCII("0123456789", studentIDGeneratorLength)
	if err != nil {
		panic(err)
	}
	return func() string {
		return gen()[:studentIDSuffixLength]
	}
}()

// GenerateStudentID derives a student identifier from the creation time:
// "ST", unix milliseconds, then a short random numeric suffix so two
// registrations in the same millisecond do not collide.
func GenerateStudentID(now time.Time) string {
	return "ST" + strconv.FormatInt(now.UnixMilli(), 10) + studentIDSuffix()
}
