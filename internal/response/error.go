package response

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/mime"
)

// Error builds an error response for status, consulting srv's configured
// error_page directives first (spec.md §4.6) and falling back to a
// built-in HTML page when none is configured or the configured page
// can't be read.
func Error(status int, srv *config.ServerBlock) *Response {
	r := New(status)
	if srv != nil {
		if uri, ok := srv.ErrorPageFor(status); ok {
			if b, ct, ok := readErrorPage(srv, uri); ok {
				r.SetHeader("Content-Type", ct)
				r.SetBodyBytes(b)
				return r
			}
		}
	}
	r.SetHeader("Content-Type", "text/html; charset=utf-8")
	r.SetBodyBytes([]byte(builtinErrorPage(status)))
	return r
}

func readErrorPage(srv *config.ServerBlock, uri string) (body []byte, contentType string, ok bool) {
	path := filepath.Join(srv.Root, strings.TrimPrefix(uri, "/"))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", false
	}
	return data, mime.Lookup(path), true
}

func builtinErrorPage(status int) string {
	reason := html.EscapeString(ReasonPhrase(status))
	return fmt.Sprintf("<html>\n<head><title>%d %s</title></head>\n<body>\n<center><h1>%d %s</h1></center>\n<hr><center>webserv</center>\n</body>\n</html>\n",
		status, reason, status, reason)
}

// MethodNotAllowed builds a 405 response with the Allow header spec.md
// §4.4 requires.
func MethodNotAllowed(srv *config.ServerBlock, allow string) *Response {
	r := Error(405, srv)
	r.SetHeader("Allow", allow)
	return r
}

// Redirect builds the 302 response for a location's return directive.
func Redirect(location string) *Response {
	r := New(302)
	r.SetHeader("Location", location)
	r.SetBodyBytes(nil)
	return r
}
