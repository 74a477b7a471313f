package common

import "regexp"

// CompileFullMatch compiles expr so that it must match the whole input, not a substring.
func CompileFullMatch(expr string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + expr + `)$`)
}
