package cgi

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/request"
)

// Deadline is the fixed CGI execution deadline from spec.md §9's Open
// Question decisions.
const Deadline = 30 * time.Second

// StartOutcome distinguishes why Start did or did not produce a running
// process, per spec.md §4.7/§7's three-way Cgi error taxonomy.
type StartOutcome int

const (
	StartOK StartOutcome = iota
	StartNotFound
	StartForbidden
	StartInternalError
)

// Runner spawns CGI children and wires their pipes for the event
// multiplexer, grounded on original_source/cgi/cgi_runner.cpp's
// execute_cgi — Go's os/exec plus os.Pipe stands in for
// fork/pipe/dup2/execve.
type Runner struct{}

// Start forks interpreter over scriptPath. body, if non-nil, is read to
// completion and written to the child's stdin before stdin is closed to
// signal EOF, matching cgi_runner.cpp's synchronous write_all — spec.md
// §4.7 step 5 describes this write as happening before Start returns,
// not as a registered writable-event.
func (Runner) Start(req *request.ParsedRequest, srv *config.ServerBlock, scriptPath, interpreter string, clientFD int, body *os.File) (*Process, StartOutcome, error) {
	info, err := os.Stat(scriptPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, StartNotFound, err
		}
		return nil, StartInternalError, err
	}
	if info.IsDir() {
		return nil, StartNotFound, fmt.Errorf("cgi: %s is a directory", scriptPath)
	}
	if f, err := os.Open(scriptPath); err != nil {
		return nil, StartForbidden, err
	} else {
		f.Close()
	}

	var bodySize int64
	if body != nil {
		if st, err := body.Stat(); err == nil {
			bodySize = st.Size()
		}
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, StartInternalError, err
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, StartInternalError, err
	}

	cmd := exec.Command(interpreter, scriptPath)
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.Env = buildEnv(req, srv, req.Path, bodySize)
	cmd.Stdin = inR
	cmd.Stdout = outW

	if err := cmd.Start(); err != nil {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		return nil, StartInternalError, err
	}

	// The child has its own duplicated copies of inR/outW now; the
	// parent closes the ends it doesn't use, the way cgi_runner.cpp
	// closes pipe_in[0]/pipe_out[1] in the parent branch right after
	// fork.
	inR.Close()
	outW.Close()

	if body != nil {
		if _, err := io.Copy(inW, body); err != nil {
			inW.Close()
			outR.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil, StartInternalError, err
		}
	}
	inW.Close()

	// os.File.Fd() detaches the descriptor from the Go runtime's poller
	// (and leaves it blocking) so SetNonblock below is the only thing
	// governing its blocking mode from here on — the multiplexer, not
	// the runtime poller, owns readiness for this fd from this point.
	if err := unix.SetNonblock(int(outR.Fd()), true); err != nil {
		outR.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, StartInternalError, err
	}

	now := time.Now()
	p := &Process{
		Cmd:        cmd,
		PID:        cmd.Process.Pid,
		StdoutFile: outR,
		ClientFD:   clientFD,
		ScriptPath: scriptPath,
		StartedAt:  now,
		LastActive: now,
		Deadline:   now.Add(Deadline),
	}
	return p, StartOK, nil
}
