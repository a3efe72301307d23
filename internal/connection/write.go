package connection

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/goceleris/webserv/internal/response"
)

const streamBlockSize = 8192

// DrainResult tells the multiplexer what to do after a writable event.
type DrainResult int

const (
	DrainPending DrainResult = iota
	DrainDone
	DrainError
)

// ArmResponse buffers resp for writing: the full header-block-plus-body
// for an in-memory response, or just the header block for a streamed
// file response, whose bytes Drain pumps in fixed-size blocks.
func (c *Connection) ArmResponse(resp *response.Response) {
	c.State = StateWritingResponse
	if resp.IsStreamed() {
		c.writeBuf = resp.HeaderBlock()
		c.streamFile = resp.File()
		c.streamRemaining = resp.FileSize()
	} else {
		c.writeBuf = resp.Bytes()
		c.streamFile = nil
	}
}

// Drain writes as much of the buffered response as the socket accepts
// right now, pumping the next block from a streamed file once the
// buffer empties, per spec.md §4.2/§4.6.
func (c *Connection) Drain() DrainResult {
	c.Touch()
	for len(c.writeBuf) > 0 {
		n, err := unix.Write(c.FD, c.writeBuf)
		if n > 0 {
			c.sentBytes = true
			c.writeBuf = c.writeBuf[n:]
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return DrainPending
			}
			return DrainError
		}
		if n == 0 {
			return DrainPending
		}
	}

	if c.streamFile == nil {
		return DrainDone
	}

	block := make([]byte, streamBlockSize)
	n, err := c.streamFile.Read(block)
	if n > 0 {
		c.writeBuf = append(c.writeBuf, block[:n]...)
		c.streamRemaining -= int64(n)
	}
	if err != nil && err != io.EOF {
		c.closeStream()
		return DrainError
	}
	if err == io.EOF || n == 0 || c.streamRemaining <= 0 {
		c.closeStream()
		if len(c.writeBuf) == 0 {
			return DrainDone
		}
	}
	return DrainPending
}

func (c *Connection) closeStream() {
	if c.streamFile != nil {
		_ = c.streamFile.Close()
		c.streamFile = nil
	}
}
