package eventloop

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/goceleris/webserv/internal/cgi"
	"github.com/goceleris/webserv/internal/response"
)

// handleCgiEvent drains a CGI child's stdout pipe until EAGAIN or EOF,
// accumulating output into the process record.
func (m *Multiplexer) handleCgiEvent(fd int, proc *cgi.Process) {
	buf := make([]byte, readBufSize)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return
			}
			m.finalizeCGI(fd, proc)
			return
		}
		if n == 0 {
			m.finalizeCGI(fd, proc)
			return
		}
		proc.Append(buf[:n])
	}
}

// finalizeCGI reaps the child exactly once, deregisters its pipe, and
// arms the client's response: the parsed CGI output on success, or a
// 502 when the child produced nothing to parse (a non-zero exit with no
// output, or a malformed child), per spec.md §7's Cgi error kind.
func (m *Multiplexer) finalizeCGI(fd int, proc *cgi.Process) {
	_ = proc.Reap()
	proc.Close()
	unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(m.table, fd)

	clientEnt, ok := m.table[proc.ClientFD]
	if !ok || clientEnt.conn == nil {
		return
	}

	if len(proc.Output) == 0 {
		m.armResponse(proc.ClientFD, clientEnt.conn, response.Error(502, clientEnt.conn.Server))
		return
	}

	resp := cgi.ParseOutput(proc.Output)
	m.armResponse(proc.ClientFD, clientEnt.conn, resp)
}
