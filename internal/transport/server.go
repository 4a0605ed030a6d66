package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/logging"
)

// shutdownGrace is how long in-flight transfers may run after Stop before
// their connections are forcibly closed.
const shutdownGrace = 5 * time.Second

// Resolver authorizes transfer requests against the registration table.
type Resolver interface {
	// ResolvePath returns the absolute path for a currently registered base
	// file name.
	ResolvePath(name string) (string, bool)
}

// Server accepts inbound peer connections and serves one file per
// connection. Concurrency is bounded to a fixed worker count; the accept
// loop never blocks on transfer completion.
type Server struct {
	addr     string
	resolver Resolver

	ln  net.Listener
	sem chan struct{}

	mu     sync.Mutex
	active map[net.Conn]struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a transfer server listening on addr (host:port) with at
// most workers concurrent transfers.
func NewServer(addr string, workers int, resolver Resolver) *Server {
	if workers <= 0 {
		workers = 1
	}
	return &Server{
		addr:     addr,
		resolver: resolver,
		sem:      make(chan struct{}, workers),
		active:   make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the listening socket and launches the accept loop. A bind
// failure is returned to the caller and is fatal to this component only.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("binding peer listener on %s: %w", s.addr, err)
	}
	s.ln = ln
	logging.Info("peer server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address. Only valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logging.Warn("connection accept error", zap.Error(err))
			continue
		}

		// Bounded-concurrency dispatch: the slot is acquired on the
		// connection's own goroutine so a saturated pool queues arrivals
		// without ever stalling the accept loop.
		s.track(conn)
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.untrack(c)
			select {
			case s.sem <- struct{}{}:
			case <-s.done:
				c.Close()
				return
			}
			defer func() { <-s.sem }()
			serveConn(c, s.resolver)
		}(conn)
	}
}

// Stop interrupts the accept loop and shuts the workers down, allowing
// in-flight transfers a bounded grace period before their connections are
// forcibly closed.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	if s.ln != nil {
		s.ln.Close()
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(shutdownGrace):
		logging.Warn("transfer grace period expired, closing connections")
		s.mu.Lock()
		for c := range s.active {
			c.Close()
		}
		s.mu.Unlock()
		<-finished
	}
	logging.Info("peer server stopped")
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.active[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.active, c)
	s.mu.Unlock()
}
