package body

import "testing"

func feedAll(c *Chunked, chunks []string) (Outcome, []byte) {
	var all []byte
	var outcome Outcome
	for _, s := range chunks {
		data := []byte(s)
		pos := 0
		for pos < len(data) {
			consumed, o, payload := c.Feed(data[pos:])
			all = append(all, payload...)
			pos += consumed
			outcome = o
			if o != NeedsMore {
				return outcome, all
			}
		}
	}
	return outcome, all
}

func TestChunkedSizeLineSplitAcrossTwoReads(t *testing.T) {
	c := NewChunked(0)
	outcome, payload := feedAll(c, []string{"5\r", "\nhello\r\n0\r\n\r\n"})
	if outcome != Complete {
		t.Fatalf("outcome = %v, want Complete", outcome)
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q, want %q", payload, "hello")
	}
}

func TestChunkedSizeLineDeliveredByteAtATime(t *testing.T) {
	c := NewChunked(0)
	var chunks []string
	for _, b := range []byte("5\r\nhello\r\n0\r\n\r\n") {
		chunks = append(chunks, string(b))
	}
	outcome, payload := feedAll(c, chunks)
	if outcome != Complete {
		t.Fatalf("outcome = %v, want Complete", outcome)
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q, want %q", payload, "hello")
	}
}

func TestChunkedMultipleChunksAcrossReads(t *testing.T) {
	c := NewChunked(0)
	outcome, payload := feedAll(c, []string{"3\r\nfoo", "\r\n3\r\nba", "r\r\n0\r\n\r\n"})
	if outcome != Complete {
		t.Fatalf("outcome = %v, want Complete", outcome)
	}
	if string(payload) != "foobar" {
		t.Errorf("payload = %q, want %q", payload, "foobar")
	}
}

func TestChunkedNonHexSizeLineIsMalformed(t *testing.T) {
	c := NewChunked(0)
	_, outcome, _ := c.Feed([]byte("zz\r\ndata\r\n0\r\n\r\n"))
	if outcome != Malformed {
		t.Fatalf("outcome = %v, want Malformed", outcome)
	}
}

func TestChunkedOversizeChunkIsTooLarge(t *testing.T) {
	c := NewChunked(3)
	_, outcome, _ := c.Feed([]byte("5\r\nhello\r\n0\r\n\r\n"))
	if outcome != TooLarge {
		t.Fatalf("outcome = %v, want TooLarge", outcome)
	}
}
