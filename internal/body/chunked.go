package body

import "strconv"

type chunkedState int

const (
	stateSizeLine chunkedState = iota
	stateChunkData
	stateChunkDataCRLF
	stateTrailerCRLF
	stateDone
)

// maxSizeLineLen bounds a pathological chunk-size line so a malformed
// stream can't grow the carry-over buffer without limit.
const maxSizeLineLen = 64

// Chunked decodes an HTTP/1.1 chunked body per spec.md §4.5: a size line
// (hex digits terminated by CRLF), size bytes of data, a trailing CRLF,
// repeated until a zero-size chunk signals completion. It carries a
// small carry-over buffer across Feed calls so a size line or a trailing
// CRLF split across two read events still decodes correctly.
type Chunked struct {
	state         chunkedState
	carry         []byte
	remaining     int64
	totalReceived int64
	maxBytes      int64
}

// NewChunked returns a Chunked decoder; maxBytes is the owning server's
// client-max-body-size (0 means unlimited).
func NewChunked(maxBytes int64) *Chunked {
	return &Chunked{maxBytes: maxBytes}
}

// Feed implements Decoder.
func (c *Chunked) Feed(data []byte) (int, Outcome, []byte) {
	pos := 0
	var out []byte

	for pos < len(data) && c.state != stateDone {
		switch c.state {
		case stateSizeLine:
			// The terminator may straddle two Feed calls (e.g. the CR
			// lands in one call's data and the LF in the next), so the
			// carry from a prior call must be rescanned jointly with
			// the fresh bytes, not just the fresh slice on its own.
			carryLen := len(c.carry)
			buf := append(append([]byte{}, c.carry...), data[pos:]...)
			idx := indexCRLF(buf)
			if idx < 0 {
				c.carry = buf
				if len(c.carry) > maxSizeLineLen {
					return len(data), Malformed, out
				}
				pos = len(data)
				continue
			}
			line := buf[:idx]
			c.carry = nil
			pos += idx + 2 - carryLen

			size, ok := parseChunkSize(line)
			if !ok {
				return pos, Malformed, out
			}
			if size == 0 {
				c.state = stateTrailerCRLF
			} else {
				c.remaining = size
				c.state = stateChunkData
			}

		case stateChunkData:
			avail := int64(len(data) - pos)
			take := avail
			if take > c.remaining {
				take = c.remaining
			}
			if c.maxBytes > 0 && c.totalReceived+take > c.maxBytes {
				return pos, TooLarge, out
			}
			out = append(out, data[pos:pos+int(take)]...)
			c.totalReceived += take
			c.remaining -= take
			pos += int(take)
			if c.remaining == 0 {
				c.state = stateChunkDataCRLF
			}

		case stateChunkDataCRLF:
			consumed, complete, malformed := c.consumeFixedCRLF(data, pos)
			pos += consumed
			if malformed {
				return pos, Malformed, out
			}
			if complete {
				c.state = stateSizeLine
			}

		case stateTrailerCRLF:
			consumed, complete, malformed := c.consumeFixedCRLF(data, pos)
			pos += consumed
			if malformed {
				return pos, Malformed, out
			}
			if complete {
				c.state = stateDone
			}
		}
	}

	if c.state == stateDone {
		return pos, Complete, out
	}
	return pos, NeedsMore, out
}

// consumeFixedCRLF accumulates exactly "\r\n" from data[pos:] into carry
// across calls, reporting how many bytes of data it consumed and whether
// the two-byte token is now complete (and valid).
func (c *Chunked) consumeFixedCRLF(data []byte, pos int) (consumed int, complete bool, malformed bool) {
	start := pos
	for pos < len(data) && len(c.carry) < 2 {
		c.carry = append(c.carry, data[pos])
		pos++
	}
	if len(c.carry) < 2 {
		return pos - start, false, false
	}
	ok := c.carry[0] == '\r' && c.carry[1] == '\n'
	c.carry = nil
	if !ok {
		return pos - start, false, true
	}
	return pos - start, true, false
}

func parseChunkSize(line []byte) (int64, bool) {
	if si := indexByte(line, ';'); si >= 0 {
		line = line[:si]
	}
	if len(line) == 0 {
		return 0, false
	}
	for _, c := range line {
		if !isHexDigit(c) {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(string(line), 16, 63)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}
