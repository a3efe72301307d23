package eventloop

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/goceleris/webserv/internal/cgi"
	"github.com/goceleris/webserv/internal/connection"
	"github.com/goceleris/webserv/internal/response"
)

func (m *Multiplexer) handleClientEvent(fd int, conn *connection.Connection, evMask uint32) {
	if evMask&(unix.EPOLLERR|unix.EPOLLHUP) != 0 && evMask&unix.EPOLLIN == 0 {
		m.closeClient(fd)
		return
	}

	if conn.State == connection.StateWritingResponse {
		m.drainClient(fd, conn)
		return
	}
	m.readClient(fd, conn)
}

// readClient drains the socket until EAGAIN, feeding each chunk into the
// connection's state machine, per spec.md §4.2.
func (m *Multiplexer) readClient(fd int, conn *connection.Connection) {
	buf := make([]byte, readBufSize)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return
			}
			m.closeClient(fd)
			return
		}
		if n == 0 {
			m.closeClient(fd)
			return
		}

		outcome := conn.Feed(buf[:n])
		if !m.applyOutcome(fd, conn, outcome) {
			return
		}
	}
}

// applyOutcome acts on a Feed result, returning whether readClient
// should keep pulling more bytes off the socket (true only when the
// connection is still waiting for more input).
func (m *Multiplexer) applyOutcome(fd int, conn *connection.Connection, out connection.Outcome) bool {
	switch out.Kind {
	case connection.OutcomeNeedsMore:
		return true
	case connection.OutcomeRespond:
		m.armResponse(fd, conn, out.Response)
	case connection.OutcomeSpawnCGI:
		m.spawnCGI(fd, conn, out.CGI)
	case connection.OutcomeCloseSilently:
		m.closeClient(fd)
	}
	return false
}

func (m *Multiplexer) drainClient(fd int, conn *connection.Connection) {
	switch conn.Drain() {
	case connection.DrainPending:
		return
	case connection.DrainDone, connection.DrainError:
		m.closeClient(fd)
	}
}

// spawnCGI suspends the client's read interest, starts the CGI child,
// and either registers its stdout pipe or arms an error response if
// spawning failed — per spec.md §4.7.
func (m *Multiplexer) spawnCGI(fd int, conn *connection.Connection, spawn *connection.CGISpawn) {
	unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: 0, Fd: int32(fd)})

	proc, outcome, err := m.runner.Start(spawn.Request, conn.Server, spawn.ScriptPath, spawn.Interpreter, fd, spawn.Body)
	if spawn.Body != nil {
		name := spawn.Body.Name()
		spawn.Body.Close()
		os.Remove(name)
	}

	switch outcome {
	case cgi.StartNotFound:
		m.armResponse(fd, conn, response.Error(404, conn.Server))
		return
	case cgi.StartForbidden:
		m.armResponse(fd, conn, response.Error(403, conn.Server))
		return
	case cgi.StartInternalError:
		_ = err
		m.armResponse(fd, conn, response.Error(500, conn.Server))
		return
	}

	conn.CGIFD = proc.StdoutFD()
	m.table[proc.StdoutFD()] = &entry{role: RoleCgiPipe, proc: proc}

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(proc.StdoutFD())}
	if err := unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_ADD, proc.StdoutFD(), ev); err != nil {
		proc.Kill()
		_ = proc.Reap()
		proc.Close()
		delete(m.table, proc.StdoutFD())
		m.armResponse(fd, conn, response.Error(502, conn.Server))
	}
}
