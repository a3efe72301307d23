// Package request implements the incremental HTTP/1.1 request parser of
// spec.md §4.3: start-line/header validation, target decoding, and query
// parsing. It never opens files, spawns processes, or reads the body —
// those are the connection state machine's job.
package request

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderSectionCap bounds the header block's size before a HeaderTooLarge
// error (431) per spec.md §4.3/§8 boundary behaviors.
const HeaderSectionCap = 8192

var validMethods = map[string]bool{"GET": true, "POST": true, "DELETE": true}

// ParsedRequest is the parser's output: method, decoded target, version,
// case-folded headers, and parsed query.
type ParsedRequest struct {
	Method      string
	Path        string
	RawTarget   string
	RawQuery    string
	QueryParams map[string]string
	Version     string
	Headers     map[string]string // lower-cased keys, trimmed values
}

// Header returns the value for a case-folded header name, and whether it
// was present.
func (r *ParsedRequest) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// LooksLikeStartLine reports whether the accumulated prefix of a request
// (before the terminating CRLFCRLF has arrived) is still a plausible
// HTTP start line: method one of GET/POST/DELETE, target begins with
// '/', version is HTTP/1.0 or HTTP/1.1. Used by the connection state
// machine to fail fast on garbage before the full header block lands.
func LooksLikeStartLine(partial []byte) bool {
	line := partial
	if i := indexCRLF(partial); i >= 0 {
		line = partial[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return true // not enough data yet to judge
	}
	method := fields[0]
	if !isKnownMethodPrefix(method) {
		return false
	}
	if len(fields) >= 2 && !strings.HasPrefix(fields[1], "/") {
		return false
	}
	if len(fields) >= 3 && !isKnownVersion(fields[2]) {
		return false
	}
	return true
}

func isKnownMethodPrefix(m string) bool {
	for _, full := range []string{"GET", "POST", "DELETE"} {
		if strings.HasPrefix(full, m) || strings.HasPrefix(m, full) {
			return true
		}
	}
	return false
}

func isKnownVersion(v string) bool {
	return v == "HTTP/1.0" || v == "HTTP/1.1" || strings.HasPrefix("HTTP/1.1", v) || strings.HasPrefix("HTTP/1.0", v)
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// Parse parses the header section (everything up to, but not including,
// the terminating CRLFCRLF) into a ParsedRequest.
func Parse(headerSection []byte) (*ParsedRequest, *ParseError) {
	if len(headerSection) > HeaderSectionCap {
		return nil, newErr(KindHeaderTooLarge, "header section of %d bytes exceeds cap of %d", len(headerSection), HeaderSectionCap)
	}

	lines := splitLines(headerSection)
	if len(lines) == 0 {
		return nil, newErr(KindBadRequest, "empty request")
	}

	req, err := parseStartLine(lines[0])
	if err != nil {
		return nil, err
	}

	req.Headers = map[string]string{}
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		if err := parseHeaderLine(line, req.Headers); err != nil {
			return nil, err
		}
	}

	if _, ok := req.Header("host"); !ok {
		return nil, newErr(KindBadRequest, "missing Host header")
	}

	return req, nil
}

func splitLines(b []byte) []string {
	text := string(b)
	text = strings.TrimSuffix(text, "\r\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\r\n")
}

func parseStartLine(line string) (*ParsedRequest, *ParseError) {
	fields := strings.Split(line, " ")
	if len(fields) != 3 {
		return nil, newErr(KindBadRequest, "malformed start line %q", line)
	}
	method, target, version := fields[0], fields[1], fields[2]

	if !validMethods[method] {
		return nil, newErr(KindBadRequest, "unsupported method %q", method)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, newErr(KindBadRequest, "target must begin with '/', got %q", target)
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, newErr(KindBadRequest, "unsupported version %q", version)
	}

	rawPath, rawQuery := splitTarget(target)
	if len(rawPath) > MaxURILength {
		return nil, newErr(KindURITooLong, "target path of %d bytes exceeds cap of %d", len(rawPath), MaxURILength)
	}

	return &ParsedRequest{
		Method:      method,
		Path:        decodePath(rawPath),
		RawTarget:   target,
		RawQuery:    rawQuery,
		QueryParams: parseQuery(rawQuery),
		Version:     version,
	}, nil
}

// parseHeaderLine parses one "name: value" header line. Whitespace before
// the colon is a syntax error (→ 400) per spec.md §3/§4.3; leading
// whitespace in the value is trimmed.
func parseHeaderLine(line string, out map[string]string) *ParseError {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return newErr(KindBadRequest, "header line missing colon: %q", line)
	}
	name := line[:colon]
	if name == "" || strings.ContainsAny(name, " \t") {
		return newErr(KindBadRequest, "whitespace before colon in header: %q", line)
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return newErr(KindBadRequest, "invalid header field name: %q", name)
	}
	value := strings.TrimLeft(line[colon+1:], " \t")
	value = strings.TrimRight(value, " \t")
	if !httpguts.ValidHeaderFieldValue(value) {
		return newErr(KindBadRequest, "invalid header field value for %q", name)
	}
	out[strings.ToLower(name)] = value
	return nil
}
