// Package connection implements the per-client pipeline state machine of
// spec.md §3/§4.2: a tagged-variant progression from ReadingHeaders
// through ReadingBody, WaitingForCGI, and WritingResponse to Closed,
// layered with the request-dispatch logic of §4.4 (location matching,
// method routing, CGI classification). The event multiplexer owns
// descriptor lifecycle and epoll registration; this package only decides
// what to do with the bytes it's handed.
package connection

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goceleris/webserv/internal/body"
	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/request"
)

// PipelineState is the state machine variant of spec.md §3: a client
// descriptor moves monotonically through these states and never
// re-enters ReadingHeaders.
type PipelineState int

const (
	StateReadingHeaders PipelineState = iota
	StateReadingBody
	StateWaitingForCGI
	StateWritingResponse
	StateClosed
)

const defaultPostBodyName = "post-body.bin"

// Connection is the multiplexer's per-client record.
type Connection struct {
	FD           int
	Server       *config.ServerBlock
	ID           string
	ConnectedAt  time.Time
	LastActive   time.Time
	RequestCount int
	State        PipelineState
	CGIFD        int

	readBuf  []byte
	writeBuf []byte

	decoder     body.Decoder
	bodyLimit   int64
	location    *config.LocationBlock
	parsed      *request.ParsedRequest
	interpreter string

	multipart    *body.MultipartSplitter
	uploadDir    string
	bodyFile     *os.File
	bodyFilePath string
	sentBytes    bool

	streamFile      *os.File
	streamRemaining int64
}

// New returns a fresh client connection in ReadingHeaders state.
func New(fd int, srv *config.ServerBlock) *Connection {
	now := time.Now()
	return &Connection{
		FD:          fd,
		Server:      srv,
		ID:          uuid.NewString(),
		ConnectedAt: now,
		LastActive:  now,
		State:       StateReadingHeaders,
	}
}

// Touch refreshes the last-activity timestamp the idle sweep checks.
func (c *Connection) Touch() { c.LastActive = time.Now() }

// HasPendingWrite reports whether the write buffer or a streamed file
// still has bytes to drain.
func (c *Connection) HasPendingWrite() bool {
	return len(c.writeBuf) > 0 || c.streamFile != nil
}

func effectiveRootOf(loc *config.LocationBlock, srv *config.ServerBlock) string {
	if loc != nil && loc.Root != "" {
		return loc.Root
	}
	return srv.Root
}

func (c *Connection) effectiveRoot() string {
	return effectiveRootOf(c.location, c.Server)
}

// resolveFilePath maps the request path onto the filesystem per spec.md
// §4.4: root + (request_path - location_path).
func (c *Connection) resolveFilePath() string {
	rel := strings.TrimPrefix(c.parsed.Path, c.location.Path)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return filepath.Join(c.effectiveRoot(), rel)
}
