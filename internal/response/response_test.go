package response

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goceleris/webserv/internal/config"
)

func TestHeaderBlockOrdersContentLengthAndConnectionLast(t *testing.T) {
	r := New(200)
	r.SetHeader("Content-Type", "text/plain")
	r.SetBodyBytes([]byte("hello"))

	block := string(r.HeaderBlock())
	if !strings.HasPrefix(block, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", block)
	}
	if !strings.HasSuffix(block, "Content-Length: 5\r\nConnection: close\r\n\r\n") {
		t.Fatalf("expected Content-Length then Connection: close last, got %q", block)
	}
}

func TestSetHeaderOverwritesCaseInsensitively(t *testing.T) {
	r := New(200)
	r.SetHeader("Content-Type", "text/plain")
	r.SetHeader("content-type", "text/html")
	block := string(r.HeaderBlock())
	if strings.Count(block, "ontent-type") > 0 {
		// header name casing is preserved from first SetHeader call
	}
	if !strings.Contains(block, "Content-Type: text/html\r\n") {
		t.Errorf("expected overwritten value, got %q", block)
	}
	if strings.Count(block, "Content-Type:") != 1 {
		t.Errorf("expected exactly one Content-Type header, got %q", block)
	}
}

func TestBytesAppendsBodyAfterHeaderBlock(t *testing.T) {
	r := New(201)
	r.SetBodyBytes([]byte("created"))
	got := string(r.Bytes())
	if !strings.HasSuffix(got, "\r\n\r\ncreated") {
		t.Errorf("unexpected bytes: %q", got)
	}
}

func TestSetBodyFileClearsInMemoryBody(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "resp")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r := New(200)
	r.SetBodyBytes([]byte("stale"))
	r.SetBodyFile(f, 42)
	if !r.IsStreamed() {
		t.Fatal("expected IsStreamed after SetBodyFile")
	}
	if r.FileSize() != 42 {
		t.Errorf("FileSize = %d, want 42", r.FileSize())
	}
	if r.body != nil {
		t.Errorf("in-memory body = %q, want nil after SetBodyFile", r.body)
	}
	block := string(r.HeaderBlock())
	if !strings.Contains(block, "Content-Length: 42\r\n") {
		t.Errorf("expected Content-Length 42, got %q", block)
	}
}

func TestReasonPhraseFallsBackToUnknown(t *testing.T) {
	if ReasonPhrase(404) != "Not Found" {
		t.Errorf("ReasonPhrase(404) = %q", ReasonPhrase(404))
	}
	if ReasonPhrase(799) != "Unknown" {
		t.Errorf("ReasonPhrase(799) = %q, want Unknown", ReasonPhrase(799))
	}
}

func TestErrorFallsBackToBuiltinPage(t *testing.T) {
	srv := &config.ServerBlock{Root: t.TempDir()}
	r := Error(404, srv)
	if r.Status != 404 {
		t.Fatalf("Status = %d, want 404", r.Status)
	}
	if !strings.Contains(string(r.Bytes()), "404 Not Found") {
		t.Errorf("expected builtin page to mention 404 Not Found")
	}
}

func TestErrorPrefersConfiguredPage(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "custom404.html"), []byte("custom not found"), 0644); err != nil {
		t.Fatal(err)
	}
	srv := &config.ServerBlock{
		Root:       root,
		ErrorPages: []config.ErrorPage{{Codes: []int{404}, URI: "/custom404.html"}},
	}
	r := Error(404, srv)
	if !strings.Contains(string(r.Bytes()), "custom not found") {
		t.Errorf("expected configured error page body, got %q", r.Bytes())
	}
}

func TestMethodNotAllowedSetsAllowHeader(t *testing.T) {
	srv := &config.ServerBlock{Root: t.TempDir()}
	r := MethodNotAllowed(srv, "GET, POST")
	if r.Status != 405 {
		t.Fatalf("Status = %d, want 405", r.Status)
	}
	if !strings.Contains(string(r.HeaderBlock()), "Allow: GET, POST\r\n") {
		t.Errorf("expected Allow header, got %q", r.HeaderBlock())
	}
}

func TestRedirectSetsLocationAndEmptyBody(t *testing.T) {
	r := Redirect("/new-path")
	if r.Status != 302 {
		t.Fatalf("Status = %d, want 302", r.Status)
	}
	if !strings.Contains(string(r.HeaderBlock()), "Location: /new-path\r\n") {
		t.Errorf("expected Location header, got %q", r.HeaderBlock())
	}
	if !strings.HasSuffix(string(r.Bytes()), "Content-Length: 0\r\nConnection: close\r\n\r\n") {
		t.Errorf("expected empty body, got %q", r.Bytes())
	}
}

func TestStaticFileStreamsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := StaticFile(path)
	if err != nil {
		t.Fatalf("StaticFile: %v", err)
	}
	defer r.File().Close()
	if !r.IsStreamed() {
		t.Fatal("expected streamed response")
	}
	if r.FileSize() != int64(len("<html></html>")) {
		t.Errorf("FileSize = %d", r.FileSize())
	}
}

func TestStaticFileMissingReturnsError(t *testing.T) {
	if _, err := StaticFile(filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAutoindexListsEntriesAndParentLink(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "a-dir"), 0755); err != nil {
		t.Fatal(err)
	}
	r, err := Autoindex(dir, "/uploads/")
	if err != nil {
		t.Fatalf("Autoindex: %v", err)
	}
	body := string(r.Bytes())
	if !strings.Contains(body, `href="../"`) {
		t.Errorf("expected parent link for non-root path, got %q", body)
	}
	if !strings.Contains(body, "a-dir/") || !strings.Contains(body, "b.txt") {
		t.Errorf("expected both entries listed, got %q", body)
	}
}

func TestAutoindexOmitsParentLinkAtRoot(t *testing.T) {
	dir := t.TempDir()
	r, err := Autoindex(dir, "/")
	if err != nil {
		t.Fatalf("Autoindex: %v", err)
	}
	if strings.Contains(string(r.Bytes()), `href="../"`) {
		t.Errorf("did not expect parent link at root")
	}
}
