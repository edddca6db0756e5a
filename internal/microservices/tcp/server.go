package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"wmshub/internal/microservices/tcp/frame"
	"wmshub/internal/warehouse"
)

// DefaultWriteTimeout bounds one frame write when Options leaves it unset.
const DefaultWriteTimeout = 5 * time.Second

// Options tunes per-connection behaviour.
type Options struct {
	MaxPayload   uint32        // largest accepted payload; 0 means frame.DefaultMaxPayload
	RateLimit    float64       // frames per second per connection; 0 disables
	RateBurst    int           // limiter burst
	WriteTimeout time.Duration // per-frame write deadline; <= 0 means DefaultWriteTimeout
	Logger       *slog.Logger
}

// server struct and methods
type TCPServer struct {
	Addr    string
	Manager *ConnectionManager
	// shared registry of live connections, read on every broadcast

	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger

	mu        sync.Mutex
	listener  net.Listener
	serveDone chan struct{} // closed when the accept loop returns; nil until Serve runs
	quitChan  chan struct{}
	// shutdown signal channel
	// when closed, the accept loop treats listener errors as a normal exit
	stopOnce sync.Once
	wg       sync.WaitGroup
	// wait group for collection of connection goroutines to finish
}

// constructor for Server
func NewServer(addr string, store *warehouse.Store, journal EventRecorder, opts Options) *TCPServer {
	if opts.MaxPayload == 0 {
		opts.MaxPayload = frame.DefaultMaxPayload
	}
	if opts.RateLimit > 0 && opts.RateBurst < 1 {
		opts.RateBurst = 1
	}
	// a broadcast waits on every peer, so a write must never be unbounded
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPServer{
		Addr:       addr,
		Manager:    NewConnectionManager(logger),
		dispatcher: NewDispatcher(store, journal, logger),
		opts:       opts,
		logger:     logger,
		quitChan:   make(chan struct{}),
	}
}

// Listen binds the listening socket without accepting yet.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server, error: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("tcp_server_listening", "addr", listener.Addr().String())
	return nil
}

// ListenAddr is the bound address, useful when Addr asked for port 0.
func (s *TCPServer) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.Addr
	}
	return s.listener.Addr().String()
}

// method to start the server
func (s *TCPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the accept loop until Stop is called.
func (s *TCPServer) Serve() error {
	s.mu.Lock()
	listener := s.listener
	if listener == nil {
		s.mu.Unlock()
		return errors.New("tcp server: Serve called before Listen")
	}
	done := make(chan struct{})
	s.serveDone = done
	s.mu.Unlock()
	defer close(done)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("failed_to_accept_connection", "error", err.Error())
			time.Sleep(50 * time.Millisecond) // avoid spinning on a persistent accept error
			continue
		}
		// add +1 to wait group for the new connection handler goroutine
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

// handle connections/lifecycle of single client connection
func (s *TCPServer) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s)
	if !s.Manager.AddConnection(client) {
		// raced with Stop; never run a connection nobody will close
		client.Close()
		return
	}
	client.Listen()
	s.Manager.RemoveConnection(client)
}

// publish pushes a package change to every connected client.
func (s *TCPServer) publish(pkg warehouse.Package) {
	f, err := s.dispatcher.UpdateFrame(pkg)
	if err != nil {
		s.logger.Error("failed_to_encode_broadcast",
			"package_id", pkg.PackageID,
			"error", err.Error(),
		)
		return
	}
	delivered := s.Manager.Broadcast(f)
	s.logger.Debug("package_update_broadcast",
		"package_id", pkg.PackageID,
		"status", pkg.Status,
		"delivered", delivered,
	)
}

// Stop closes the listener, then every open connection, and waits for the
// connection goroutines to return.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quitChan)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		done := s.serveDone
		s.mu.Unlock()
		if done != nil {
			<-done // no wg.Add can happen after this
		}
		s.Manager.CloseAllConnections()
		s.wg.Wait()
		s.logger.Info("tcp_server_stopped")
	})
}
