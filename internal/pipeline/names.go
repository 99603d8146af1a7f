package pipeline

import (
	"strings"
	"unicode"
)

// DefaultBaseName replaces a filename that sanitizes to nothing.
const DefaultBaseName = "audio"

// SanitizeFilename keeps letters, digits and the characters "-_(). ", then
// trims surrounding whitespace.
func SanitizeFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune("-_(). ", r) {
			return r
		}
		return -1
	}, name)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return DefaultBaseName
	}
	return clean
}

// BaseName strips the final extension from name. Leading dots do not start
// an extension, so ".bashrc" is returned unchanged. Dots before the last
// slash are not extensions either.
func BaseName(name string) string {
	file := name[strings.LastIndexByte(name, '/')+1:]
	i := strings.LastIndexByte(file, '.')
	if i <= 0 || strings.Trim(file[:i], ".") == "" {
		return name
	}
	return name[:len(name)-len(file)+i]
}

// OutputBase is the base name for produced files: the upload name without
// its extension, sanitized.
func OutputBase(filename string) string {
	return SanitizeFilename(BaseName(filename))
}
