package core

import "regexp"

// identifierPattern admits SQL identifiers: a letter or underscore followed
// by at most 63 letters, digits, or underscores.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidIdentifier reports whether name is usable as a table or column
// identifier. Directive-style names starting with @ are never identifiers.
func ValidIdentifier(name string) bool {
	if name == "" || name[0] == '@' {
		return false
	}
	return identifierPattern.MatchString(name)
}
