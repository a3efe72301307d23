// Package eventloop implements the single-threaded cooperative
// multiplexer of spec.md §4.1/§5: one epoll instance indexing every
// listening socket, client connection, and CGI pipe through a single
// descriptor table, with one dispatch loop and no per-connection
// goroutines or locking. Grounded on
// goceleris-benchmarks/servers/theoretical/epoll/http1.go's socket/epoll
// setup and accept-until-EAGAIN pattern, generalized from one hardcoded
// listener to the config tree's server blocks and switched from
// edge-triggered to level-triggered semantics (no EPOLLET) to match
// spec.md's close-always, no-keep-alive connection model.
package eventloop

import (
	"fmt"
	"log"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/goceleris/webserv/internal/cgi"
	"github.com/goceleris/webserv/internal/config"
	"github.com/goceleris/webserv/internal/connection"
	"github.com/goceleris/webserv/internal/response"
)

// Role tags what a registered descriptor belongs to — the descriptor
// table is the single index of ownership spec.md §3 describes.
type Role int

const (
	RoleListener Role = iota
	RoleClient
	RoleCgiPipe
)

const (
	maxEvents   = 1024
	readBufSize = 8192

	// idleTimeout is the epoll_wait budget (IDLE_TIMEOUT_MS, spec.md
	// §4.1/§9's Open Question decision).
	idleTimeout = 30000 * time.Millisecond
	// clientIdleLimit is CLIENT_IDLE_MS, swept only when epoll_wait
	// returns zero events.
	clientIdleLimit = 60000 * time.Millisecond
)

type listener struct {
	fd     int
	server *config.ServerBlock
}

type entry struct {
	role     Role
	listener *listener
	conn     *connection.Connection
	proc     *cgi.Process
}

// Multiplexer is the event loop of spec.md §4.1.
type Multiplexer struct {
	epollFd   int
	table     map[int]*entry
	listeners []*listener
	runner    cgi.Runner
}

// New creates a Multiplexer with one bound, listening socket per server
// block, all registered on a single epoll instance.
func New(servers []config.ServerBlock) (*Multiplexer, error) {
	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	m := &Multiplexer{epollFd: epollFd, table: map[int]*entry{}}
	for i := range servers {
		if err := m.addListener(&servers[i]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Multiplexer) addListener(srv *config.ServerBlock) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := sockaddrFor(srv.Host, srv.Port)
	if err != nil {
		return fmt.Errorf("listener %s: %w", srv.Addr(), err)
	}
	if err := unix.Bind(fd, addr); err != nil {
		return fmt.Errorf("bind %s: %w", srv.Addr(), err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr(), err)
	}

	l := &listener{fd: fd, server: srv}
	m.listeners = append(m.listeners, l)
	m.table[fd] = &entry{role: RoleListener, listener: l}

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl add listener %s: %w", srv.Addr(), err)
	}

	log.Printf("webserv: listening on %s", srv.Addr())
	return nil
}

// sockaddrFor builds a Sockaddr for host, which is either the wildcard
// sentinel or an IPv4 literal already validated at config-load time
// (spec.md §9's Open Question decision on inet_pton-equivalent
// validation).
func sockaddrFor(host string, port int) (unix.Sockaddr, error) {
	if host == "" || host == "0.0.0.0" {
		return &unix.SockaddrInet4{Port: port}, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("invalid host %q", host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("host %q is not an IPv4 literal", host)
	}
	addr := &unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], ip4)
	return addr, nil
}

// Run is the loop's only suspension point besides the bounded syscalls
// it knows about, per spec.md §5: sweep expired CGI children, wait on
// epoll, sweep idle clients on a zero-event wakeup, then dispatch each
// ready descriptor by its table role.
func (m *Multiplexer) Run() error {
	events := make([]unix.EpollEvent, maxEvents)
	for {
		m.sweepCGIDeadlines()

		n, err := unix.EpollWait(m.epollFd, events, int(idleTimeout/time.Millisecond))
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		if n == 0 {
			m.sweepIdleClients()
			continue
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			ent, ok := m.table[fd]
			if !ok {
				continue
			}
			switch ent.role {
			case RoleListener:
				if err := m.acceptLoop(ent.listener); err != nil {
					return err
				}
			case RoleClient:
				m.handleClientEvent(fd, ent.conn, events[i].Events)
			case RoleCgiPipe:
				m.handleCgiEvent(fd, ent.proc)
			}
		}
	}
}

// acceptLoop drains a listener's backlog until EAGAIN, per the teacher's
// accept-until-EAGAIN pattern. A non-transient accept4 error is fatal,
// per spec.md §7's Fatal error class.
func (m *Multiplexer) acceptLoop(l *listener) error {
	for {
		connFd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case syscall.EAGAIN:
				return nil
			case syscall.EINTR, syscall.ECONNABORTED:
				continue
			default:
				return fmt.Errorf("accept4: %w", err)
			}
		}

		unix.SetsockoptInt(connFd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		conn := connection.New(connFd, l.server)
		m.table[connFd] = &entry{role: RoleClient, conn: conn}

		ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(connFd)}
		if err := unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_ADD, connFd, ev); err != nil {
			delete(m.table, connFd)
			unix.Close(connFd)
		}
	}
}

func (m *Multiplexer) armResponse(fd int, conn *connection.Connection, resp *response.Response) {
	conn.ArmResponse(resp)
	ev := &unix.EpollEvent{Events: unix.EPOLLOUT, Fd: int32(fd)}
	unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (m *Multiplexer) closeClient(fd int) {
	ent, ok := m.table[fd]
	if !ok {
		return
	}
	if ent.conn != nil && ent.conn.State == connection.StateWaitingForCGI && ent.conn.CGIFD != 0 {
		m.killCGI(ent.conn.CGIFD)
	}
	unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	unix.Close(fd)
	if ent.conn != nil {
		ent.conn.Close()
	}
	delete(m.table, fd)
}

// killCGI cancels a CGI child whose client went away, per spec.md §4.1's
// cascade-cancel rule.
func (m *Multiplexer) killCGI(cgiFD int) {
	ent, ok := m.table[cgiFD]
	if !ok || ent.proc == nil {
		return
	}
	ent.proc.Kill()
	_ = ent.proc.Reap()
	ent.proc.Close()
	unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_DEL, cgiFD, nil)
	delete(m.table, cgiFD)
}

func (m *Multiplexer) sweepCGIDeadlines() {
	now := time.Now()
	var expired []int
	for fd, ent := range m.table {
		if ent.role == RoleCgiPipe && ent.proc.Expired(now) {
			expired = append(expired, fd)
		}
	}
	for _, fd := range expired {
		proc := m.table[fd].proc
		proc.Kill()
		_ = proc.Reap()
		proc.Close()
		unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(m.table, fd)

		clientEnt, ok := m.table[proc.ClientFD]
		if ok && clientEnt.conn != nil {
			m.armResponse(proc.ClientFD, clientEnt.conn, response.Error(504, clientEnt.conn.Server))
		}
	}
}

// sweepIdleClients runs only when epoll_wait returns with zero events,
// closing any client whose LastActive predates CLIENT_IDLE_MS.
func (m *Multiplexer) sweepIdleClients() {
	now := time.Now()
	var stale []int
	for fd, ent := range m.table {
		if ent.role == RoleClient && now.Sub(ent.conn.LastActive) > clientIdleLimit {
			stale = append(stale, fd)
		}
	}
	for _, fd := range stale {
		conn := m.table[fd].conn
		if !conn.SentAnyBytes() {
			conn.ArmResponse(response.Error(408, conn.Server))
			conn.Drain()
		}
		m.closeClient(fd)
	}
}
