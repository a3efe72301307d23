package connection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/goceleris/webserv/internal/body"
	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/request"
	"github.com/goceleris/webserv/internal/response"
)

var errUploadDirForbidden = errors.New("connection: upload directory is not writable")

type headerPhaseResult int

const (
	headersNeedMore headerPhaseResult = iota
	headersNeedBody
	headersDone
)

// Feed appends newly-read bytes and advances the state machine as far as
// it can in one call, per spec.md §4.2.
func (c *Connection) Feed(data []byte) Outcome {
	c.Touch()
	c.readBuf = append(c.readBuf, data...)

	if c.State == StateReadingHeaders {
		outcome, res := c.advanceHeaders()
		if res != headersNeedBody {
			return outcome
		}
	}
	if c.State == StateReadingBody {
		return c.advanceBody()
	}
	return Outcome{Kind: OutcomeNeedsMore}
}

func (c *Connection) advanceHeaders() (Outcome, headerPhaseResult) {
	idx := indexCRLFCRLF(c.readBuf)
	if idx < 0 {
		if len(c.readBuf) > request.HeaderSectionCap {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(431, c.Server)}, headersDone
		}
		if !request.LooksLikeStartLine(c.readBuf) {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(400, c.Server)}, headersDone
		}
		return Outcome{Kind: OutcomeNeedsMore}, headersNeedMore
	}

	headerSection := c.readBuf[:idx]
	rest := append([]byte{}, c.readBuf[idx+4:]...)
	c.readBuf = nil

	parsed, perr := request.Parse(headerSection)
	if perr != nil {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(perr.Status(), c.Server)}, headersDone
	}
	c.parsed = parsed
	c.RequestCount++

	loc, outcome, done := c.matchAndValidate(parsed)
	if done {
		return outcome, headersDone
	}
	c.location = loc

	if parsed.Method != "POST" {
		return c.dispatch(), headersDone
	}

	isCGI := false
	if interp, ok := loc.InterpreterFor(parsed.Path); ok {
		isCGI = true
		c.interpreter = interp
	}

	cl, hasCL := parsed.Header("content-length")
	te, hasTE := parsed.Header("transfer-encoding")
	chunked := hasTE && strings.EqualFold(te, "chunked")

	if !hasCL && !chunked {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(411, c.Server)}, headersDone
	}

	c.bodyLimit = c.Server.ClientMaxBodySize

	// A declared Content-Length is checked against the body limit before
	// the sink is opened, so an oversize body is rejected with 413 even
	// when the location has no upload_store (or the sink would otherwise
	// fail). The size violation takes precedence over sink errors, per
	// spec.md §3/§8's client-max-body-size invariant.
	var n int64
	if !chunked {
		var err error
		n, err = strconv.ParseInt(cl, 10, 63)
		if err != nil || n < 0 {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(400, c.Server)}, headersDone
		}
		if c.bodyLimit > 0 && n > c.bodyLimit {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(413, c.Server)}, headersDone
		}
	}

	if err := c.armBodySink(isCGI); err != nil {
		status := 500
		if errors.Is(err, errUploadDirForbidden) {
			status = 403
		}
		return Outcome{Kind: OutcomeRespond, Response: response.Error(status, c.Server)}, headersDone
	}

	if chunked {
		c.decoder = body.NewChunked(c.bodyLimit)
	} else {
		c.decoder = body.NewLengthed(n, c.bodyLimit)
	}

	c.State = StateReadingBody
	c.readBuf = rest
	return Outcome{}, headersNeedBody
}

// matchAndValidate applies spec.md §4.4's location-match, redirect, and
// method-allowed checks, in that order (no-match/empty-root must be
// ruled out before a nil location's Return/AllowedMethods can be read).
func (c *Connection) matchAndValidate(req *request.ParsedRequest) (*config.LocationBlock, Outcome, bool) {
	loc := c.Server.MatchLocation(req.Path)
	if loc == nil || effectiveRootOf(loc, c.Server) == "" {
		return loc, Outcome{Kind: OutcomeRespond, Response: response.Error(404, c.Server)}, true
	}
	if loc.Return != "" {
		return loc, Outcome{Kind: OutcomeRespond, Response: response.Redirect(loc.Return)}, true
	}
	if !loc.MethodAllowed(req.Method) {
		return loc, Outcome{Kind: OutcomeRespond, Response: response.MethodNotAllowed(c.Server, loc.AllowHeader())}, true
	}
	return loc, Outcome{}, false
}

// armBodySink opens wherever the upcoming POST body will be written:
// a uuid/X-File-Name-derived temp file for CGI, or the location's
// upload_store for multipart/non-multipart uploads, pre-checked for
// writability per SPEC_FULL.md's upload-dir-writability supplement.
func (c *Connection) armBodySink(isCGI bool) error {
	if isCGI {
		name := "cgi-body-" + c.ID
		if fn, ok := c.parsed.Header("x-file-name"); ok && fn != "" {
			name = filepath.Base(fn)
		}
		path := filepath.Join(os.TempDir(), name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		c.bodyFile = f
		c.bodyFilePath = path
		return nil
	}

	uploadDir := c.location.UploadStore
	if uploadDir == "" {
		return fmt.Errorf("connection: location %q has no upload_store configured", c.location.Path)
	}
	if !uploadDirWritable(uploadDir) {
		return errUploadDirForbidden
	}

	ct, _ := c.parsed.Header("content-type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		boundary := body.ExtractBoundary(ct)
		if boundary == "" {
			return fmt.Errorf("connection: multipart request missing boundary parameter")
		}
		c.multipart = body.NewMultipartSplitter(boundary)
		c.uploadDir = uploadDir
		return nil
	}

	path := filepath.Join(uploadDir, defaultPostBodyName)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	c.bodyFile = f
	c.bodyFilePath = path
	return nil
}

func uploadDirWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(dir, unix.W_OK) == nil
}

func (c *Connection) advanceBody() Outcome {
	consumed, outcome, payload := c.decoder.Feed(c.readBuf)

	if len(payload) > 0 {
		if c.multipart != nil {
			if _, err := c.multipart.Feed(c.uploadDir, payload); err != nil {
				c.abortUpload()
				c.readBuf = c.readBuf[consumed:]
				return Outcome{Kind: OutcomeRespond, Response: response.Error(400, c.Server)}
			}
		} else if c.bodyFile != nil {
			if _, err := c.bodyFile.Write(payload); err != nil {
				c.abortUpload()
				c.readBuf = c.readBuf[consumed:]
				return Outcome{Kind: OutcomeRespond, Response: response.Error(500, c.Server)}
			}
		}
	}
	c.readBuf = c.readBuf[consumed:]

	switch outcome {
	case body.NeedsMore:
		return Outcome{Kind: OutcomeNeedsMore}
	case body.Malformed:
		c.abortUpload()
		return Outcome{Kind: OutcomeRespond, Response: response.Error(400, c.Server)}
	case body.TooLarge:
		c.truncateUpload()
		return Outcome{Kind: OutcomeRespond, Response: response.Error(413, c.Server)}
	default: // body.Complete
		return c.finishBody()
	}
}

// finishBody routes a fully-received POST body: to a CGI spawn if the
// location classified the path as CGI, otherwise into the ordinary POST
// dispatch.
func (c *Connection) finishBody() Outcome {
	if c.bodyFile != nil {
		if err := c.bodyFile.Close(); err != nil {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(500, c.Server)}
		}
	}

	if c.interpreter != "" {
		f, err := os.Open(c.bodyFilePath)
		if err != nil {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(500, c.Server)}
		}
		c.State = StateWaitingForCGI
		return Outcome{Kind: OutcomeSpawnCGI, CGI: &CGISpawn{
			Location:    c.location,
			ScriptPath:  c.resolveFilePath(),
			Interpreter: c.interpreter,
			Request:     c.parsed,
			Body:        f,
		}}
	}

	return c.dispatch()
}

func (c *Connection) abortUpload() {
	if c.bodyFile != nil {
		_ = c.bodyFile.Close()
		_ = os.Remove(c.bodyFilePath)
		c.bodyFile = nil
	}
	if c.multipart != nil {
		c.multipart.Abort()
	}
}

func (c *Connection) truncateUpload() {
	if c.bodyFile != nil {
		_ = c.bodyFile.Truncate(0)
		_ = c.bodyFile.Close()
		c.bodyFile = nil
	}
	if c.multipart != nil {
		c.multipart.Truncate()
	}
}

func indexCRLFCRLF(b []byte) int {
	for i := 0; i+4 <= len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' && b[i+2] == '\r' && b[i+3] == '\n' {
			return i
		}
	}
	return -1
}
