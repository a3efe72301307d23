package connection

import (
	"os"

	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/request"
	"github.com/goceleris/webserv/internal/response"
)

// OutcomeKind tells the event multiplexer what to do after Feed advances
// the connection's state machine.
type OutcomeKind int

const (
	// OutcomeNeedsMore means Feed consumed what it could and is waiting
	// for more bytes from the socket.
	OutcomeNeedsMore OutcomeKind = iota
	// OutcomeRespond means a response is ready to be armed for writing.
	OutcomeRespond
	// OutcomeSpawnCGI means the multiplexer should start a CGI child and
	// register its stdout pipe.
	OutcomeSpawnCGI
	// OutcomeCloseSilently means the connection should close without a
	// response, per spec.md §4.2/§7's late-failure policy.
	OutcomeCloseSilently
)

// CGISpawn carries everything the event multiplexer needs to hand off to
// the CGI runner, per spec.md §4.7.
type CGISpawn struct {
	Location    *config.LocationBlock
	ScriptPath  string
	Interpreter string
	Request     *request.ParsedRequest
	Body        *os.File // nil for a GET CGI request
}

// Outcome is Feed's result.
type Outcome struct {
	Kind     OutcomeKind
	Response *response.Response
	CGI      *CGISpawn
}
