package connection

import (
	"log"
	"time"
)

// Close releases any file handles the connection still owns and logs
// the per-connection summary grounded on original_source/client/
// client.cpp's cleanup_connection (connection duration, request count),
// per SPEC_FULL.md's supplemented connection-teardown logging.
func (c *Connection) Close() {
	c.State = StateClosed
	c.closeStream()
	if c.bodyFile != nil {
		_ = c.bodyFile.Close()
	}
	log.Printf("connection %s: %d request(s) over %s", c.ID, c.RequestCount, time.Since(c.ConnectedAt).Round(time.Millisecond))
}

// SentAnyBytes reports whether any response bytes have already gone
// out, which decides whether a late-discovered error can still be
// reported as an HTTP response or must close the connection silently
// (spec.md §4.2/§7).
func (c *Connection) SentAnyBytes() bool { return c.sentBytes }
