// Package config loads the Nginx-like configuration file into an immutable
// tree of server and location blocks.
package config

import "fmt"

// ErrorPage maps a set of status codes to a URI to serve for that status.
type ErrorPage struct {
	Codes []int
	URI   string
}

// LocationBlock is a path-prefix scoped set of routing rules nested inside
// a ServerBlock.
type LocationBlock struct {
	Path            string
	Root            string
	Index           []string
	Autoindex       bool
	AllowedMethods  map[string]bool
	Return          string
	UploadStore     string
	CGIExtensions   []string
	CGIInterpreters []string
}

// InterpreterFor returns the interpreter bound to path's extension and
// whether the location treats path as a CGI request at all.
func (l *LocationBlock) InterpreterFor(path string) (string, bool) {
	for i, ext := range l.CGIExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return l.CGIInterpreters[i], true
		}
	}
	return "", false
}

// MethodAllowed reports whether method is permitted by this location. An
// empty AllowedMethods set means "no restriction".
func (l *LocationBlock) MethodAllowed(method string) bool {
	if len(l.AllowedMethods) == 0 {
		return true
	}
	return l.AllowedMethods[method]
}

// AllowHeader renders the location's allowed methods for a 405 response,
// in a stable order.
func (l *LocationBlock) AllowHeader() string {
	order := []string{"GET", "POST", "DELETE"}
	out := ""
	for _, m := range order {
		if l.AllowedMethods[m] {
			if out != "" {
				out += ", "
			}
			out += m
		}
	}
	return out
}

// ServerBlock is one listening socket's worth of configuration.
type ServerBlock struct {
	Host               string
	Port               int
	Root               string
	Index              []string
	ClientMaxBodySize  int64
	Autoindex          bool
	ErrorPages         []ErrorPage
	Locations          []LocationBlock
}

// ErrorPageFor returns the configured URI for status, if any.
func (s *ServerBlock) ErrorPageFor(status int) (string, bool) {
	for _, ep := range s.ErrorPages {
		for _, c := range ep.Codes {
			if c == status {
				return ep.URI, true
			}
		}
	}
	return "", false
}

// Addr renders the host:port listen address.
func (s *ServerBlock) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MatchLocation selects the longest-prefix-matching location for path, the
// way spec.md §4.4 defines it: the location path is "/", the request
// equals the location path, or the next character in the request is "/".
func (s *ServerBlock) MatchLocation(path string) *LocationBlock {
	var best *LocationBlock
	bestLen := -1
	for i := range s.Locations {
		loc := &s.Locations[i]
		if !locationMatches(loc.Path, path) {
			continue
		}
		if len(loc.Path) > bestLen {
			bestLen = len(loc.Path)
			best = loc
		}
	}
	return best
}

func locationMatches(locPath, reqPath string) bool {
	if locPath == "/" {
		return true
	}
	if reqPath == locPath {
		return true
	}
	if len(reqPath) > len(locPath) && reqPath[:len(locPath)] == locPath && reqPath[len(locPath)] == '/' {
		return true
	}
	return false
}
