package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

	windowsDeviceNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

// SecureFilename reduces a client supplied name to a flat ASCII file name that is safe
// to join with the upload directory. Names that reduce to nothing get a random name.
func SecureFilename(name string) string {
	ascii := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	safe, _, err := transform.String(ascii, name)
	if err != nil {
		safe = ""
	}

	safe = strings.NewReplacer("/", " ", "\\", " ").Replace(safe)
	safe = strings.Join(strings.Fields(safe), "_")
	safe = unsafeFilenameChars.ReplaceAllString(safe, "")
	safe = strings.Trim(safe, "._")

	if safe == "" {
		return "upload-" + uuid.NewString()
	}
	stem, _, _ := strings.Cut(safe, ".")
	if _, ok := windowsDeviceNames[strings.ToUpper(stem)]; ok {
		safe = "_" + safe
	}
	return safe
}
