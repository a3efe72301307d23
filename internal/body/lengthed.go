package body

// Lengthed decodes a Content-Length-framed body: each arriving byte
// decrements remaining; it completes once remaining reaches zero.
type Lengthed struct {
	remaining int64
	received  int64
	maxBytes  int64
}

// NewLengthed returns a Lengthed decoder for a body of exactly n bytes,
// rejecting as TooLarge anything that would exceed maxBytes (0 means no
// limit).
func NewLengthed(n int64, maxBytes int64) *Lengthed {
	return &Lengthed{remaining: n, maxBytes: maxBytes}
}

// Feed implements Decoder.
func (l *Lengthed) Feed(data []byte) (int, Outcome, []byte) {
	if l.remaining == 0 {
		return 0, Complete, nil
	}
	take := int64(len(data))
	if take > l.remaining {
		take = l.remaining // overrun is discarded by the caller
	}
	if l.maxBytes > 0 && l.received+take > l.maxBytes {
		return 0, TooLarge, nil
	}
	l.remaining -= take
	l.received += take
	payload := data[:take]
	if l.remaining == 0 {
		return int(take), Complete, payload
	}
	return int(take), NeedsMore, payload
}

// Remaining reports how many bytes are still expected.
func (l *Lengthed) Remaining() int64 { return l.remaining }
