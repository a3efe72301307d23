package connection

import (
	"testing"

	"github.com/goceleris/webserv/internal/config"
)

// TestOversizePostWithoutUploadStoreReturns413 guards against the body
// limit being checked only after armBodySink: a location with no
// upload_store must still reject an oversize Content-Length with 413,
// not whatever status a missing sink would otherwise produce.
func TestOversizePostWithoutUploadStoreReturns413(t *testing.T) {
	srv := &config.ServerBlock{
		Root:              "/tmp",
		ClientMaxBodySize: 4,
		Locations: []config.LocationBlock{
			{Path: "/up", AllowedMethods: map[string]bool{}},
		},
	}

	c := New(0, srv)
	out := c.Feed([]byte("POST /up HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\n"))

	if out.Kind != OutcomeRespond {
		t.Fatalf("Kind = %v, want OutcomeRespond", out.Kind)
	}
	if out.Response.Status != 413 {
		t.Fatalf("Status = %d, want 413", out.Response.Status)
	}
}

// TestBodyWithinLimitStillRequiresUploadStore checks the inverse: once
// the declared length passes the limit check, a missing upload_store
// is still reported as a server error once the body actually needs a
// sink to write into.
func TestBodyWithinLimitStillRequiresUploadStore(t *testing.T) {
	srv := &config.ServerBlock{
		Root:              "/tmp",
		ClientMaxBodySize: 100,
		Locations: []config.LocationBlock{
			{Path: "/up", AllowedMethods: map[string]bool{}},
		},
	}

	c := New(0, srv)
	out := c.Feed([]byte("POST /up HTTP/1.1\r\nHost: x\r\nContent-Length: 4\r\n\r\n"))

	if out.Kind != OutcomeRespond {
		t.Fatalf("Kind = %v, want OutcomeRespond", out.Kind)
	}
	if out.Response.Status != 500 {
		t.Fatalf("Status = %d, want 500 for a location with no upload_store", out.Response.Status)
	}
}
