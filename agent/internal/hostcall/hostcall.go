// Package hostcall adapts the host's single-string call convention to the
// organizer's (name, data) commands.
//
// A host call is "name;data". Only the first two ';'-separated fields are
// used, so a payload containing ';' is truncated at its first separator; the
// host protocol has no escaping. The result is cut to fit the host's output
// buffer, which reserves one byte for the terminator.
package hostcall

import (
	"strings"
	"unicode/utf8"
)

// Separator splits the function name from its data.
const Separator = ";"

// Caller runs a named command. *organizer.Organizer implements it.
type Caller interface {
	Call(name, data string) (string, bool)
}

// Parse splits a host call into function name and data. data is empty when
// the call has no separator.
func Parse(line string) (name, data string) {
	fields := strings.Split(line, Separator)
	name = fields[0]
	if len(fields) > 1 {
		data = fields[1]
	}
	return name, data
}

// Invoke parses line, runs it on c and returns the result sized for an
// outputSize byte buffer. "No result" is returned as the empty string.
func Invoke(c Caller, line string, outputSize int) string {
	name, data := Parse(line)
	out, ok := c.Call(name, data)
	if !ok {
		return ""
	}
	return Truncate(out, outputSize-1)
}

// Truncate shortens s to at most limit bytes without splitting a UTF-8
// sequence. NUL bytes end the string, as they would in the host's buffer.
func Truncate(s string, limit int) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	// Back up to the start of the rune that would be cut in half.
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
