package cgi

import (
	"os"
	"os/exec"
	"time"
)

// Process is the parent-side handle for one spawned CGI child, the
// CgiProcess of spec.md §3: pid, pipe descriptors, the client it serves,
// and the timestamps the deadline sweep checks.
type Process struct {
	Cmd        *exec.Cmd
	PID        int
	StdoutFile *os.File
	ClientFD   int
	ScriptPath string
	StartedAt  time.Time
	LastActive time.Time
	Deadline   time.Time
	Finished   bool
	Output     []byte
}

// StdoutFD returns the descriptor the multiplexer registers for
// readability.
func (p *Process) StdoutFD() int {
	return int(p.StdoutFile.Fd())
}

// Append adds newly-read bytes to the output accumulator and refreshes
// the activity timestamp.
func (p *Process) Append(b []byte) {
	p.Output = append(p.Output, b...)
	p.LastActive = time.Now()
}

// Expired reports whether the process has outlived its deadline.
func (p *Process) Expired(now time.Time) bool {
	return !p.Finished && now.After(p.Deadline)
}

// Kill sends SIGKILL to the child; an unstarted child (nil
// Cmd.Process) or an already-dead child is a no-op.
func (p *Process) Kill() {
	if p.Cmd.Process != nil {
		_ = p.Cmd.Process.Kill()
	}
}

// Reap waits for the child to exit, exactly once per spec.md §8's
// "exactly one waitpid per terminated child" property.
func (p *Process) Reap() error {
	if p.Finished {
		return nil
	}
	p.Finished = true
	return p.Cmd.Wait()
}

// Close closes the stdout pipe end the parent still owns.
func (p *Process) Close() {
	if p.StdoutFile != nil {
		_ = p.StdoutFile.Close()
		p.StdoutFile = nil
	}
}
