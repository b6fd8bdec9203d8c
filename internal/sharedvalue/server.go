package sharedvalue

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/danmuck/apptree/internal/auth"
	"github.com/danmuck/apptree/internal/protocol"
	"github.com/danmuck/apptree/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// Server exposes a LocalStore to other processes over a unix socket. Get
// and Set from every process serialize on the store lock; cell operations
// serialize on the cell's own lock.
type Server struct {
	store  *LocalStore
	auth   auth.Validator
	limits frame.Limits
	logger zerolog.Logger
	ln     net.Listener
	path   string

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

type ServerOption func(*Server)

func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

func WithServerLimits(l frame.Limits) ServerOption {
	return func(s *Server) { s.limits = l }
}

// Serve listens on the unix socket at path and serves store until Close.
// The store's Endpoint is set to path.
func Serve(store *LocalStore, path string, v auth.Validator, opts ...ServerOption) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("sharedvalue: clear socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("sharedvalue: listen %s: %w", path, err)
	}
	s := &Server{
		store:  store,
		auth:   v,
		limits: frame.DefaultLimits(),
		logger: zerolog.Nop(),
		ln:     ln,
		path:   path,
		conns:  make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	store.setEndpoint(path)

	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Debug().Str("socket", path).Msg("sharedvalue.Server ready")
	return s, nil
}

func (s *Server) Addr() string {
	return s.path
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.ln.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.store.setEndpoint("")
	_ = os.Remove(s.path)
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error().Err(err).Msg("sharedvalue.Server accept failed")
			}
			return
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	for {
		req, token, err := protocol.ReadRequest(conn, s.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, frame.ErrShortHeader) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn().Err(err).Msg("sharedvalue.Server read failed")
			}
			return
		}
		if err := s.auth.Validate(token); err != nil {
			_ = protocol.WriteResponse(conn, protocol.Response{
				ID:      req.ID,
				Status:  protocol.StatusUnauthorized,
				Message: err.Error(),
			}, s.limits)
			s.logger.Warn().Str("caller", req.Caller).Msg("sharedvalue.Server rejected token")
			return
		}
		resp := s.handle(req)
		if err := protocol.WriteResponse(conn, resp, s.limits); err != nil {
			s.logger.Warn().Err(err).Str("op", req.Type.String()).Msg("sharedvalue.Server write failed")
			return
		}
	}
}

// handle answers req. A reply value the wire cannot encode is answered
// with StatusUnsupported and the connection stays open.
func (s *Server) handle(req protocol.Request) protocol.Response {
	value, folder, err := s.dispatch(req)
	if err == nil {
		if _, encErr := protocol.EncodeValue(protocol.FieldValue, value); encErr != nil {
			err = fmt.Errorf("%w: %s %q: %v", ErrUnsupportedValue, req.Type, req.Name, encErr)
			s.logger.Warn().Str("caller", req.Caller).Str("name", req.Name).Err(encErr).Msg("sharedvalue.Server cannot encode value")
		}
	}
	resp := protocol.Response{ID: req.ID, Status: statusOf(err), Value: value, Folder: folder}
	if err != nil {
		resp.Value = nil
		resp.Folder = false
		resp.Message = err.Error()
	}
	return resp
}

func (s *Server) dispatch(req protocol.Request) (any, bool, error) {
	switch req.Type {
	case protocol.MessageGet:
		return s.get(req)
	case protocol.MessageSet:
		return nil, false, s.set(req)
	case protocol.MessageCellLoad:
		c, err := s.cell(req, false)
		if err != nil {
			return nil, false, err
		}
		v, err := c.Load()
		return v, false, err
	case protocol.MessageCellStore:
		c, err := s.cell(req, true)
		if err != nil {
			return nil, false, err
		}
		return nil, false, c.Store(req.Value)
	case protocol.MessageCellUpdate:
		c, err := s.cell(req, true)
		if err != nil {
			return nil, false, err
		}
		return nil, false, swapIf(c.Update, req.Expect, req.Value)
	case protocol.MessageArrayLen:
		a, err := s.array(req, false)
		if err != nil {
			return nil, false, err
		}
		n, err := a.Len()
		return int64(n), false, err
	case protocol.MessageArrayIndex:
		a, err := s.array(req, false)
		if err != nil {
			return nil, false, err
		}
		v, err := a.Index(int(req.Index))
		return v, false, err
	case protocol.MessageArraySlice:
		a, err := s.array(req, false)
		if err != nil {
			return nil, false, err
		}
		v, err := a.Slice(int(req.Lo), int(req.Hi))
		return v, false, err
	case protocol.MessageArraySet:
		a, err := s.array(req, true)
		if err != nil {
			return nil, false, err
		}
		return nil, false, a.SetIndex(int(req.Index), req.Value)
	case protocol.MessageArrayUpdate:
		a, err := s.array(req, true)
		if err != nil {
			return nil, false, err
		}
		update := func(fn UpdateFunc) error { return a.UpdateIndex(int(req.Index), fn) }
		return nil, false, swapIf(update, req.Expect, req.Value)
	default:
		return nil, false, fmt.Errorf("%w: %s", protocol.ErrUnknownMessageType, req.Type)
	}
}

func (s *Server) get(req protocol.Request) (any, bool, error) {
	v, err := s.store.Get(req.Caller, req.Name)
	if err != nil {
		return nil, false, err
	}
	key, err := resolveKey(req.Caller, req.Name)
	if err != nil {
		return nil, false, err
	}
	_, folder := v.(Folder)
	enc, err := encodeShared(key, v)
	return enc, folder, err
}

func (s *Server) set(req protocol.Request) error {
	v := req.Value
	if ref, ok := v.(protocol.CellRef); ok {
		var err error
		if ref.Key == "" {
			v, err = materialize(ref)
		} else {
			v, err = s.aliased(ref.Key)
		}
		if err != nil {
			return err
		}
	}
	return s.store.Set(req.Caller, req.Name, v)
}

func (s *Server) aliased(key string) (any, error) {
	e, ok := s.store.entryAt(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return e.value, nil
}

// cell returns the value cell at req.Name. Writes require caller ownership.
func (s *Server) cell(req protocol.Request, write bool) (ValueCell, error) {
	e, err := s.entry(req, write)
	if err != nil {
		return nil, err
	}
	c, ok := e.value.(ValueCell)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not a cell", ErrKindMismatch, req.Name, e.value)
	}
	return c, nil
}

func (s *Server) array(req protocol.Request, write bool) (ArrayCell, error) {
	e, err := s.entry(req, write)
	if err != nil {
		return nil, err
	}
	a, ok := e.value.(ArrayCell)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not an array", ErrKindMismatch, req.Name, e.value)
	}
	return a, nil
}

func (s *Server) entry(req protocol.Request, write bool) (entry, error) {
	e, ok := s.store.entryAt(req.Name)
	if !ok {
		return entry{}, fmt.Errorf("%w: %q", ErrNotFound, req.Name)
	}
	if write && (e.owner == "" || e.owner != req.Caller) {
		return entry{}, fmt.Errorf("%w: %q is owned by %q", ErrReadOnly, req.Name, e.owner)
	}
	return e, nil
}
