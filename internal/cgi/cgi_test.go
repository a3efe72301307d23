package cgi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/request"
)

func TestBuildEnvGetRequest(t *testing.T) {
	req := &request.ParsedRequest{
		Method:   "GET",
		Path:     "/cgi-bin/hello.py",
		RawQuery: "name=world",
		Headers:  map[string]string{"host": "x", "user-agent": "test-agent"},
	}
	srv := &config.ServerBlock{Host: "127.0.0.1", Port: 8080}
	env := buildEnv(req, srv, req.Path, 0)

	want := map[string]string{
		"REQUEST_METHOD":    "GET",
		"QUERY_STRING":      "name=world",
		"GATEWAY_INTERFACE": "CGI/1.1",
		"SERVER_PROTOCOL":   "HTTP/1.1",
		"SERVER_NAME":       "127.0.0.1",
		"SERVER_PORT":       "8080",
		"SCRIPT_NAME":       "/cgi-bin/hello.py",
		"PATH_INFO":         "",
		"HTTP_USER_AGENT":   "test-agent",
	}
	got := map[string]string{}
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		got[name] = value
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("env[%s] = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["CONTENT_LENGTH"]; ok {
		t.Error("did not expect CONTENT_LENGTH for a GET request")
	}
}

func TestBuildEnvPostRequestSetsContentFields(t *testing.T) {
	req := &request.ParsedRequest{
		Method:  "POST",
		Path:    "/cgi-bin/upload.py",
		Headers: map[string]string{"content-type": "application/json", "content-length": "123"},
	}
	srv := &config.ServerBlock{Host: "0.0.0.0", Port: 80}
	env := buildEnv(req, srv, req.Path, 123)

	var sawContentLength, sawContentType, sawHTTPContentLength bool
	for _, kv := range env {
		switch {
		case kv == "CONTENT_LENGTH=123":
			sawContentLength = true
		case kv == "CONTENT_TYPE=application/json":
			sawContentType = true
		case strings.HasPrefix(kv, "HTTP_CONTENT_"):
			sawHTTPContentLength = true
		}
	}
	if !sawContentLength {
		t.Error("expected CONTENT_LENGTH=123")
	}
	if !sawContentType {
		t.Error("expected CONTENT_TYPE=application/json")
	}
	if sawHTTPContentLength {
		t.Error("content-length/content-type must not also appear as HTTP_ vars")
	}
}

func TestBuildEnvPostDefaultsContentType(t *testing.T) {
	req := &request.ParsedRequest{Method: "POST", Headers: map[string]string{}}
	srv := &config.ServerBlock{}
	env := buildEnv(req, srv, "/x", 0)
	found := false
	for _, kv := range env {
		if kv == "CONTENT_TYPE=application/x-www-form-urlencoded" {
			found = true
		}
	}
	if !found {
		t.Error("expected default CONTENT_TYPE when header absent")
	}
}

func TestParseOutputExtractsStatusAndContentType(t *testing.T) {
	raw := []byte("Status: 404 Not Found\r\nContent-Type: text/plain\r\n\r\nno such thing")
	resp := ParseOutput(raw)
	if resp.Status != 404 {
		t.Fatalf("Status = %d, want 404", resp.Status)
	}
	if !strings.Contains(string(resp.Bytes()), "Content-Type: text/plain") {
		t.Errorf("expected preserved Content-Type, got %q", resp.Bytes())
	}
	if !strings.HasSuffix(string(resp.Bytes()), "no such thing") {
		t.Errorf("expected body passthrough, got %q", resp.Bytes())
	}
}

func TestParseOutputDefaultsStatusTo200(t *testing.T) {
	raw := []byte("Content-Type: text/html\n\n<h1>hi</h1>")
	resp := ParseOutput(raw)
	if resp.Status != 200 {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
}

func TestParseOutputRecomputesContentLength(t *testing.T) {
	raw := []byte("Content-Length: 999\r\n\r\nreal body")
	resp := ParseOutput(raw)
	block := string(resp.HeaderBlock())
	if strings.Contains(block, "Content-Length: 999") {
		t.Error("CGI-supplied Content-Length should be ignored")
	}
	if !strings.Contains(block, "Content-Length: 9\r\n") {
		t.Errorf("expected recomputed Content-Length 9, got %q", block)
	}
}

func TestParseOutputPassesThroughExtraHeaders(t *testing.T) {
	raw := []byte("X-Custom: yes\r\n\r\nbody")
	resp := ParseOutput(raw)
	if !strings.Contains(string(resp.HeaderBlock()), "X-Custom: yes\r\n") {
		t.Errorf("expected extra header preserved, got %q", resp.HeaderBlock())
	}
}

func TestProcessReapIsIdempotent(t *testing.T) {
	p := &Process{Finished: true}
	if err := p.Reap(); err != nil {
		t.Fatalf("Reap on already-finished process should be a no-op, got %v", err)
	}
}

func TestProcessExpired(t *testing.T) {
	past := time.Now().Add(-time.Second)
	p := &Process{Deadline: past}
	if !p.Expired(time.Now()) {
		t.Error("expected expired process to report Expired")
	}
	p.Finished = true
	if p.Expired(time.Now()) {
		t.Error("a finished process should never report Expired")
	}
}

func TestProcessAppendAccumulatesOutput(t *testing.T) {
	p := &Process{}
	p.Append([]byte("ab"))
	p.Append([]byte("cd"))
	if string(p.Output) != "abcd" {
		t.Errorf("Output = %q, want abcd", p.Output)
	}
}

func TestStartMissingScriptReturnsNotFound(t *testing.T) {
	req := &request.ParsedRequest{Method: "GET", Headers: map[string]string{}}
	srv := &config.ServerBlock{}
	_, outcome, err := Runner{}.Start(req, srv, filepath.Join(t.TempDir(), "missing.py"), "/usr/bin/python3", 0, nil)
	if outcome != StartNotFound {
		t.Fatalf("outcome = %v, want StartNotFound", outcome)
	}
	if err == nil {
		t.Error("expected a non-nil error alongside StartNotFound")
	}
}

func TestStartDirectoryAsScriptReturnsNotFound(t *testing.T) {
	req := &request.ParsedRequest{Method: "GET", Headers: map[string]string{}}
	srv := &config.ServerBlock{}
	dir := t.TempDir()
	_, outcome, _ := Runner{}.Start(req, srv, dir, "/usr/bin/python3", 0, nil)
	if outcome != StartNotFound {
		t.Fatalf("outcome = %v, want StartNotFound for a directory script path", outcome)
	}
}

func TestStartUnreadableScriptReturnsForbidden(t *testing.T) {
	script := filepath.Join(t.TempDir(), "noread.py")
	if err := os.WriteFile(script, []byte("print('hi')"), 0000); err != nil {
		t.Fatal(err)
	}
	req := &request.ParsedRequest{Method: "GET", Headers: map[string]string{}}
	srv := &config.ServerBlock{}
	_, outcome, _ := Runner{}.Start(req, srv, script, "/usr/bin/python3", 0, nil)
	if outcome != StartForbidden {
		t.Fatalf("outcome = %v, want StartForbidden for an unreadable script", outcome)
	}
}
