package body

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultUploadName is used when a part carries no filename parameter.
const defaultUploadName = "upload.bin"

// maxPartHeaderBuf bounds how long the splitter waits for the first
// part's header block before giving up.
const maxPartHeaderBuf = 8192

type multipartState int

const (
	multipartAwaitingHeaders multipartState = iota
	multipartStreamingData
	multipartDone
)

// MultipartSplitter is a stateful, incremental decoder of a single
// multipart/form-data part: it extracts the boundary from Content-Type,
// locates the first part's headers, pulls the filename parameter (or a
// default name), and streams the part's data to a file in the location's
// upload-store directory. It handles boundaries that straddle separate
// Feed calls by holding back a tail of unwritten bytes long enough to
// contain a partial boundary match.
type MultipartSplitter struct {
	boundary   string
	delim      []byte // "\r\n--" + boundary
	state      multipartState
	headerBuf  []byte
	carry      []byte
	file       *os.File
	FileName   string
	bytesWritten int64
}

// ExtractBoundary pulls the boundary parameter out of a Content-Type
// header value, handling both quoted and unquoted forms.
func ExtractBoundary(contentType string) string {
	idx := strings.Index(contentType, "boundary=")
	if idx < 0 {
		return ""
	}
	rest := contentType[idx+len("boundary="):]
	if len(rest) > 0 && rest[0] == '"' {
		rest = rest[1:]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	end := strings.IndexAny(rest, "; \t\r\n")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

// NewMultipartSplitter returns a splitter for the given boundary. The
// upload directory is supplied per-call to Feed rather than stored here,
// since it is only needed once the first part's filename is known.
func NewMultipartSplitter(boundary string) *MultipartSplitter {
	return &MultipartSplitter{
		boundary: boundary,
		delim:    []byte("\r\n--" + boundary),
	}
}

// Feed decodes another slice of raw (already length/chunk-decoded) body
// bytes. Outcome is NeedsMore until the closing boundary is found.
func (m *MultipartSplitter) Feed(uploadDir string, data []byte) (Outcome, error) {
	if m.state == multipartDone {
		return Complete, nil
	}

	if m.state == multipartAwaitingHeaders {
		m.headerBuf = append(m.headerBuf, data...)
		sep, sepLen := findHeaderSeparator(m.headerBuf)
		if sep < 0 {
			if len(m.headerBuf) > maxPartHeaderBuf {
				return Malformed, fmt.Errorf("multipart: part headers exceeded %d bytes without terminator", maxPartHeaderBuf)
			}
			return NeedsMore, nil
		}
		headers := string(m.headerBuf[:sep])
		m.FileName = extractFilename(headers)
		if m.FileName == "" {
			m.FileName = defaultUploadName
		}
		f, err := os.Create(filepath.Join(uploadDir, filepath.Base(m.FileName)))
		if err != nil {
			return Malformed, fmt.Errorf("multipart: create upload file: %w", err)
		}
		m.file = f
		remainder := m.headerBuf[sep+sepLen:]
		m.headerBuf = nil
		m.state = multipartStreamingData
		return m.consumeData(remainder)
	}

	return m.consumeData(data)
}

// consumeData appends newData to the carry buffer and writes out
// everything that cannot possibly be a prefix of the closing boundary.
func (m *MultipartSplitter) consumeData(newData []byte) (Outcome, error) {
	buf := append(m.carry, newData...)
	m.carry = nil

	if idx := bytes.Index(buf, m.delim); idx >= 0 {
		if err := m.writeAndClose(buf[:idx]); err != nil {
			return Malformed, err
		}
		m.state = multipartDone
		return Complete, nil
	}

	keep := overlapSuffixLen(buf, m.delim)
	writeLen := len(buf) - keep
	if writeLen > 0 {
		if _, err := m.file.Write(buf[:writeLen]); err != nil {
			return Malformed, fmt.Errorf("multipart: write upload data: %w", err)
		}
		m.bytesWritten += int64(writeLen)
	}
	m.carry = append(m.carry, buf[writeLen:]...)
	return NeedsMore, nil
}

func (m *MultipartSplitter) writeAndClose(tail []byte) error {
	if len(tail) > 0 {
		if _, err := m.file.Write(tail); err != nil {
			_ = m.file.Close()
			return fmt.Errorf("multipart: write final upload data: %w", err)
		}
		m.bytesWritten += int64(len(tail))
	}
	return m.file.Close()
}

// findHeaderSeparator locates the CRLFCRLF or LFLF that ends a part's
// header block, returning its offset and length (4 or 2).
func findHeaderSeparator(buf []byte) (int, int) {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return i, 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return i, 2
	}
	return -1, 0
}

// extractFilename pulls the filename="..." parameter out of a part's
// header block, per spec.md §4.5.
func extractFilename(headers string) string {
	idx := strings.Index(headers, `filename="`)
	if idx < 0 {
		return ""
	}
	rest := headers[idx+len(`filename="`):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// Truncate empties and closes the partially-written upload file, per
// spec.md §9's truncate-to-empty policy for an oversize body.
func (m *MultipartSplitter) Truncate() {
	if m.file != nil {
		_ = m.file.Truncate(0)
		_ = m.file.Close()
		m.file = nil
	}
}

// Abort closes and removes the partially-written upload file on a
// malformed-body abort.
func (m *MultipartSplitter) Abort() {
	if m.file != nil {
		name := m.file.Name()
		_ = m.file.Close()
		_ = os.Remove(name)
		m.file = nil
	}
}

// overlapSuffixLen returns the length of the longest suffix of buf that
// is also a prefix of delim — the number of trailing bytes that might
// turn out to be the start of the boundary once more data arrives.
func overlapSuffixLen(buf, delim []byte) int {
	max := len(delim) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for n := max; n > 0; n-- {
		if bytes.Equal(buf[len(buf)-n:], delim[:n]) {
			return n
		}
	}
	return 0
}
