package cgi

import (
	"fmt"
	"strings"

	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/request"
)

// buildEnv constructs the CGI environment vector from the request, per
// spec.md §4.7, grounded on original_source/cgi/cgi_runner.cpp's
// build_cgi_env.
func buildEnv(req *request.ParsedRequest, srv *config.ServerBlock, scriptName string, bodySize int64) []string {
	env := []string{
		"REQUEST_METHOD=" + req.Method,
		"QUERY_STRING=" + req.RawQuery,
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_SOFTWARE=webserv",
		"SERVER_NAME=" + srv.Host,
		"SERVER_PORT=" + fmt.Sprint(srv.Port),
		"SCRIPT_NAME=" + scriptName,
		"PATH_INFO=",
	}

	if req.Method == "POST" {
		env = append(env, fmt.Sprintf("CONTENT_LENGTH=%d", bodySize))
		if ct, ok := req.Header("content-type"); ok {
			env = append(env, "CONTENT_TYPE="+ct)
		} else {
			env = append(env, "CONTENT_TYPE=application/x-www-form-urlencoded")
		}
	}

	for name, value := range req.Headers {
		if name == "content-length" || name == "content-type" {
			continue
		}
		env = append(env, "HTTP_"+headerEnvName(name)+"="+value)
	}

	return env
}

func headerEnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
