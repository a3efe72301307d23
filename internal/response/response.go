// Package response builds HTTP/1.1 responses per spec.md §4.6: a status
// line, headers in insertion order, and a body that is either fully
// buffered in memory or an open file streamed in fixed-size blocks by
// the connection state machine. Content-Length and Connection: close are
// always emitted, computed from whichever body form is armed.
package response

import (
	"fmt"
	"os"
	"strings"
)

type header struct {
	Name  string
	Value string
}

// Response is the response builder's output.
type Response struct {
	Status   int
	headers  []header
	body     []byte
	file     *os.File
	fileSize int64
}

// New returns an empty response with the given status and no headers or
// body set yet.
func New(status int) *Response {
	return &Response{Status: status}
}

// SetHeader appends or overwrites a header value. Content-Length and
// Connection are reserved by the builder itself and are not settable
// here.
func (r *Response) SetHeader(name, value string) {
	if strings.EqualFold(name, "Content-Length") || strings.EqualFold(name, "Connection") {
		return
	}
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].Name, name) {
			r.headers[i].Value = value
			return
		}
	}
	r.headers = append(r.headers, header{Name: name, Value: value})
}

// SetBodyBytes arms an in-memory body, clearing any previously armed
// streamed file.
func (r *Response) SetBodyBytes(b []byte) {
	r.body = b
	r.file = nil
	r.fileSize = 0
}

// SetBodyFile arms a streamed body of size bytes read from f. The caller
// keeps ownership of f until the connection's write pump closes it.
func (r *Response) SetBodyFile(f *os.File, size int64) {
	r.file = f
	r.fileSize = size
	r.body = nil
}

// IsStreamed reports whether the response body is a file to be streamed
// rather than an in-memory buffer.
func (r *Response) IsStreamed() bool { return r.file != nil }

// File returns the streamed body's open file, or nil for an in-memory
// response.
func (r *Response) File() *os.File { return r.file }

// FileSize returns the streamed body's byte count.
func (r *Response) FileSize() int64 { return r.fileSize }

// HeaderBlock renders the status line and headers, terminated by the
// blank line, with Content-Length and Connection: close always last, per
// spec.md §4.6's fixed wire shape.
func (r *Response) HeaderBlock() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", r.Status, ReasonPhrase(r.Status))
	for _, h := range r.headers {
		fmt.Fprintf(&sb, "%s: %s\r\n", h.Name, h.Value)
	}
	length := int64(len(r.body))
	if r.file != nil {
		length = r.fileSize
	}
	fmt.Fprintf(&sb, "Content-Length: %d\r\n", length)
	sb.WriteString("Connection: close\r\n\r\n")
	return []byte(sb.String())
}

// Bytes renders the full in-memory response: header block followed by
// body. It must not be called on a streamed response — the connection's
// write pump reads the file separately.
func (r *Response) Bytes() []byte {
	return append(r.HeaderBlock(), r.body...)
}
