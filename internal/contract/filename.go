package contract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultStudentName replaces names that sanitize to nothing
const DefaultStudentName = "alumno"

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	disallowedRE = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// Sanitize reduces name to [A-Za-z0-9_-], turning whitespace runs into "_".
// Empty results fall back to def.
func Sanitize(name, def string) string {
	if strings.TrimSpace(name) == "" {
		return def
	}
	s := whitespaceRE.ReplaceAllString(strings.TrimSpace(name), "_")
	s = disallowedRE.ReplaceAllString(s, "")
	s = strings.Trim(s, "_")
	if s == "" {
		return def
	}
	return s
}

// Filename builds the attachment name for a generated contract
func Filename(t Type, studentName string) string {
	return fmt.Sprintf("Contrato_%s_%s.pdf", t, Sanitize(studentName, DefaultStudentName))
}
