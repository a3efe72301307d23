package cgi

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goceleris/webserv/internal/response"
)

// ParseOutput splits the CGI child's raw stdout into a header block and
// body per spec.md §4.8, special-casing Status and Content-Type and
// recomputing Content-Length from the body it actually received,
// grounded on original_source/cgi/cgi_runner.cpp's wrap_cgi_into_http.
func ParseOutput(raw []byte) *response.Response {
	headerBlock, body := splitHeadersBody(raw)

	status := 200
	contentType := "text/html; charset=utf-8"
	var extra [][2]string

	for _, line := range strings.Split(headerBlock, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		switch strings.ToLower(name) {
		case "status":
			if code, ok := parseStatusCode(value); ok {
				status = code
			}
		case "content-type":
			contentType = value
		case "content-length":
			// recomputed below; a CGI-supplied value is ignored.
		default:
			extra = append(extra, [2]string{name, value})
		}
	}

	r := response.New(status)
	r.SetHeader("Content-Type", contentType)
	for _, h := range extra {
		r.SetHeader(h[0], h[1])
	}
	r.SetBodyBytes(body)
	return r
}

func splitHeadersBody(raw []byte) (string, []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return string(raw[:i]), raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return string(raw[:i]), raw[i+2:]
	}
	return "", raw
}

// parseStatusCode parses "<code> [reason]" from a CGI Status header.
func parseStatusCode(v string) (int, bool) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return code, true
}
