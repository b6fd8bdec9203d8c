package sharedvalue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/danmuck/apptree/internal/protocol"
	"github.com/danmuck/apptree/internal/protocol/frame"
)

// BackoffConfig defines dial retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 20 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     500 * time.Millisecond,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Client is a Store backed by a remote Server. Requests are serialized over
// a single connection.
type Client struct {
	endpoint string
	token    []byte
	limits   frame.Limits

	mu     sync.Mutex
	conn   net.Conn
	nextID uint64
	closed bool
}

type ClientOption func(*dialConfig)

type dialConfig struct {
	backoff BackoffConfig
	limits  frame.Limits
}

func WithBackoff(b BackoffConfig) ClientOption {
	return func(c *dialConfig) { c.backoff = b }
}

func WithClientLimits(l frame.Limits) ClientOption {
	return func(c *dialConfig) { c.limits = l }
}

// Dial connects to the store served at endpoint, retrying with backoff
// until ctx ends.
func Dial(ctx context.Context, endpoint string, token []byte, opts ...ClientOption) (*Client, error) {
	cfg := dialConfig{backoff: DefaultBackoff(), limits: frame.DefaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var d net.Dialer
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "unix", endpoint)
		if err == nil {
			return &Client{endpoint: endpoint, token: token, limits: cfg.limits, conn: conn}, nil
		}
		delay := NextBackoffDelay(cfg.backoff, attempt, rng)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("sharedvalue: dial %s after %d attempts: %w", endpoint, attempt, err)
		case <-time.After(delay):
		}
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) Get(caller, n string) (any, error) {
	resp, err := c.roundTrip(protocol.Request{Type: protocol.MessageGet, Caller: caller, Name: n})
	if err != nil {
		return nil, err
	}
	v := c.decode(caller, resp.Value)
	if resp.Folder {
		m, _ := v.(map[string]any)
		return Folder(m), nil
	}
	return v, nil
}

func (c *Client) Set(caller, suffix string, v any) error {
	enc, err := encodeNew(v)
	if err != nil {
		return err
	}
	if _, err := protocol.Canonical(enc); err != nil {
		return fmt.Errorf("%w: %q from %q: %v", ErrUnsupportedValue, suffix, caller, err)
	}
	_, err = c.roundTrip(protocol.Request{Type: protocol.MessageSet, Caller: caller, Name: suffix, Value: enc})
	return err
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol.Response{}, ErrClosed
	}
	c.nextID++
	req.ID = c.nextID
	if err := protocol.WriteRequest(c.conn, req, c.token, c.limits); err != nil {
		return protocol.Response{}, fmt.Errorf("sharedvalue: %s %q: %w", req.Type, req.Name, err)
	}
	resp, err := protocol.ReadResponse(c.conn, c.limits)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("sharedvalue: %s %q: %w", req.Type, req.Name, err)
	}
	if resp.ID != req.ID {
		return protocol.Response{}, fmt.Errorf("%w: sent %d got %d", protocol.ErrMessageIDMismatch, req.ID, resp.ID)
	}
	if err := errorOf(resp); err != nil {
		return protocol.Response{}, err
	}
	return resp, nil
}

// decode replaces cell references with remote handles bound to caller.
func (c *Client) decode(caller string, v any) any {
	switch x := v.(type) {
	case protocol.CellRef:
		var h any
		if x.Array {
			h = &remoteArray{c: c, caller: caller, key: x.Key, kind: Kind(x.Kind)}
		} else {
			h = &remoteCell{c: c, caller: caller, key: x.Key, kind: Kind(x.Kind)}
		}
		if !x.Writable {
			h, _ = MakeReadOnly(h)
		}
		return h
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = c.decode(caller, item)
		}
		return out
	default:
		return v
	}
}

type remoteCell struct {
	c      *Client
	caller string
	key    string
	kind   Kind
}

func (r *remoteCell) Kind() Kind { return r.kind }

func (r *remoteCell) Load() (any, error) {
	resp, err := r.c.roundTrip(protocol.Request{Type: protocol.MessageCellLoad, Caller: r.caller, Name: r.key})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (r *remoteCell) Store(v any) error {
	norm, err := normalize(r.kind, v)
	if err != nil {
		return err
	}
	_, err = r.c.roundTrip(protocol.Request{Type: protocol.MessageCellStore, Caller: r.caller, Name: r.key, Value: norm})
	return err
}

// Update loads, applies fn and asks the server to swap in the result only
// if nobody wrote in between, retrying on conflict.
func (r *remoteCell) Update(fn UpdateFunc) error {
	return retryUpdate(r.key, func() error {
		cur, err := r.Load()
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		norm, err := normalize(r.kind, next)
		if err != nil {
			return err
		}
		_, err = r.c.roundTrip(protocol.Request{
			Type:   protocol.MessageCellUpdate,
			Caller: r.caller,
			Name:   r.key,
			Value:  norm,
			Expect: cur,
		})
		return err
	})
}

type remoteArray struct {
	c      *Client
	caller string
	key    string
	kind   Kind
}

func (r *remoteArray) Kind() Kind { return r.kind }

func (r *remoteArray) Len() (int, error) {
	resp, err := r.c.roundTrip(protocol.Request{Type: protocol.MessageArrayLen, Caller: r.caller, Name: r.key})
	if err != nil {
		return 0, err
	}
	n, ok := resp.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: array length %T", protocol.ErrInvalidValue, resp.Value)
	}
	return int(n), nil
}

func (r *remoteArray) Index(i int) (any, error) {
	resp, err := r.c.roundTrip(protocol.Request{Type: protocol.MessageArrayIndex, Caller: r.caller, Name: r.key, Index: int64(i)})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (r *remoteArray) Slice(lo, hi int) ([]any, error) {
	resp, err := r.c.roundTrip(protocol.Request{
		Type:   protocol.MessageArraySlice,
		Caller: r.caller,
		Name:   r.key,
		Lo:     int64(lo),
		Hi:     int64(hi),
	})
	if err != nil {
		return nil, err
	}
	vals, ok := resp.Value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: array slice %T", protocol.ErrInvalidValue, resp.Value)
	}
	return vals, nil
}

func (r *remoteArray) SetIndex(i int, v any) error {
	norm, err := normalize(r.kind, v)
	if err != nil {
		return err
	}
	_, err = r.c.roundTrip(protocol.Request{Type: protocol.MessageArraySet, Caller: r.caller, Name: r.key, Index: int64(i), Value: norm})
	return err
}

func (r *remoteArray) UpdateIndex(i int, fn UpdateFunc) error {
	return retryUpdate(r.key, func() error {
		cur, err := r.Index(i)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		norm, err := normalize(r.kind, next)
		if err != nil {
			return err
		}
		_, err = r.c.roundTrip(protocol.Request{
			Type:   protocol.MessageArrayUpdate,
			Caller: r.caller,
			Name:   r.key,
			Index:  int64(i),
			Value:  norm,
			Expect: cur,
		})
		return err
	})
}

// maxUpdateAttempts bounds retries of a contended remote update. Every
// conflict means another writer got through.
const maxUpdateAttempts = 64

func retryUpdate(key string, attempt func() error) error {
	for i := 0; i < maxUpdateAttempts; i++ {
		err := attempt()
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %q after %d attempts", ErrConflict, key, maxUpdateAttempts)
}
