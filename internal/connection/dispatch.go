package connection

import (
	"os"
	"path/filepath"

	"github.com/goceleris/webserv/internal/request"
	"github.com/goceleris/webserv/internal/response"
)

// dispatch routes a fully-parsed, body-complete request to its method
// handler, per spec.md §4.4.
func (c *Connection) dispatch() Outcome {
	switch c.parsed.Method {
	case "GET":
		return c.dispatchGET()
	case "DELETE":
		return c.dispatchDELETE()
	case "POST":
		return c.dispatchPOSTComplete()
	default:
		return Outcome{Kind: OutcomeRespond, Response: response.Error(501, c.Server)}
	}
}

func (c *Connection) dispatchGET() Outcome {
	if request.ContainsDotDot(c.parsed.Path) {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(400, c.Server)}
	}

	if interp, ok := c.location.InterpreterFor(c.parsed.Path); ok {
		c.interpreter = interp
		c.State = StateWaitingForCGI
		return Outcome{Kind: OutcomeSpawnCGI, CGI: &CGISpawn{
			Location:    c.location,
			ScriptPath:  c.resolveFilePath(),
			Interpreter: interp,
			Request:     c.parsed,
		}}
	}

	fsPath := c.resolveFilePath()
	info, err := os.Stat(fsPath)
	if err != nil {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(404, c.Server)}
	}
	if info.IsDir() {
		return c.serveDirectory(fsPath)
	}

	resp, err := response.StaticFile(fsPath)
	if err != nil {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(403, c.Server)}
	}
	return Outcome{Kind: OutcomeRespond, Response: resp}
}

// serveDirectory tries each configured index filename in order, falling
// back to an autoindex listing if enabled, per spec.md §4.4.
func (c *Connection) serveDirectory(fsDir string) Outcome {
	index := c.location.Index
	if len(index) == 0 {
		index = c.Server.Index
	}
	for _, name := range index {
		candidate := filepath.Join(fsDir, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			resp, err := response.StaticFile(candidate)
			if err != nil {
				return Outcome{Kind: OutcomeRespond, Response: response.Error(403, c.Server)}
			}
			return Outcome{Kind: OutcomeRespond, Response: resp}
		}
	}
	if c.location.Autoindex || c.Server.Autoindex {
		resp, err := response.Autoindex(fsDir, c.parsed.Path)
		if err != nil {
			return Outcome{Kind: OutcomeRespond, Response: response.Error(403, c.Server)}
		}
		return Outcome{Kind: OutcomeRespond, Response: resp}
	}
	return Outcome{Kind: OutcomeRespond, Response: response.Error(403, c.Server)}
}

func (c *Connection) dispatchDELETE() Outcome {
	if request.ContainsDotDot(c.parsed.Path) {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(400, c.Server)}
	}
	fsPath := c.resolveFilePath()
	info, err := os.Stat(fsPath)
	if err != nil {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(404, c.Server)}
	}
	if info.IsDir() {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(403, c.Server)}
	}
	if err := os.Remove(fsPath); err != nil {
		return Outcome{Kind: OutcomeRespond, Response: response.Error(403, c.Server)}
	}
	return Outcome{Kind: OutcomeRespond, Response: response.New(204)}
}

func (c *Connection) dispatchPOSTComplete() Outcome {
	r := response.New(201)
	r.SetHeader("Content-Type", "text/plain; charset=utf-8")
	r.SetBodyBytes([]byte("Upload complete\n"))
	return Outcome{Kind: OutcomeRespond, Response: r}
}
