// Package tracehook streams scheduler ordering events to a socket.io server.
//
// A Publisher is a scheduler.Observer. Observer calls only enqueue the event;
// a background pump emits it once the client is connected. When the queue is
// full, or the client is not connected, events are counted and dropped so the
// scheduler is never held up by the network.
package tracehook

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/blockorder/internal/scheduler"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted to the server.
const (
	EventOrderAdd = "order.add"
	EventOrderRem = "order.rem"
)

const (
	defaultBuffer         = 1024
	defaultConnectTimeout = 10 * time.Second
)

// Event is the payload of one emitted event.
type Event struct {
	Seq  uint64 `json:"seq"`
	Kind string `json:"-"`
	Prev string `json:"prev"`
	Next string `json:"next"`
}

// Options configures a Publisher.
type Options struct {
	URL                string
	Namespace          string
	Buffer             int
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// Publisher implements scheduler.Observer.
type Publisher struct {
	opts    Options
	baseURL string
	path    string
	logger  *slog.Logger

	events    chan Event
	seq       atomic.Uint64
	dropped   atomic.Uint64
	emitted   atomic.Uint64
	connected atomic.Bool

	io        *socket.Socket
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New validates opts and prepares a publisher. Nothing is dialed until Start.
func New(opts Options, logger *slog.Logger) (*Publisher, error) {
	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trace URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("trace URL %q must be absolute", opts.URL)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		opts:    opts,
		baseURL: fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host),
		path:    parsedURL.Path,
		logger:  logger.With("component", "tracehook", "url", opts.URL),
		events:  make(chan Event, opts.Buffer),
		done:    make(chan struct{}),
	}, nil
}

// Start connects to the server and starts the pump. It returns once the
// connection is established, fails, or ctx ends.
func (p *Publisher) Start(ctx context.Context) error {
	opts := socket.DefaultOptions()
	if p.path != "" {
		opts.SetPath(p.path)
	}
	if p.opts.InsecureSkipVerify {
		p.logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(p.baseURL, opts)
	io := manager.Socket(p.opts.Namespace, opts)

	connectChan := make(chan error, 1)
	io.On(types.EventName("connect"), func(...any) {
		p.connected.Store(true)
		p.logger.Debug("Trace client connected.", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.On(types.EventName("disconnect"), func(...any) {
		p.connected.Store(false)
		p.logger.Debug("Trace client disconnected.")
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	timer := time.NewTimer(p.opts.ConnectTimeout)
	defer timer.Stop()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return fmt.Errorf("trace connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("waiting for trace connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return fmt.Errorf("timed out after %s waiting for trace connection", p.opts.ConnectTimeout)
	}

	p.io = io
	p.wg.Add(1)
	go p.pump()
	return nil
}

func (p *Publisher) pump() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			p.emit(ev)
		}
	}
}

func (p *Publisher) emit(ev Event) {
	if !p.connected.Load() {
		p.dropped.Add(1)
		return
	}
	p.io.Emit(ev.Kind, ev)
	p.emitted.Add(1)
}

func (p *Publisher) publish(kind string, prev, next scheduler.Handle) {
	ev := Event{
		Seq:  p.seq.Add(1),
		Kind: kind,
		Prev: prev.String(),
		Next: next.String(),
	}
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) OnOrderAdd(prev, next scheduler.Handle) { p.publish(EventOrderAdd, prev, next) }
func (p *Publisher) OnOrderRem(prev, next scheduler.Handle) { p.publish(EventOrderRem, prev, next) }

// Dropped returns how many events were discarded.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Emitted returns how many events were handed to the client.
func (p *Publisher) Emitted() uint64 { return p.emitted.Load() }

// Close stops the pump and disconnects. Queued events are discarded.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		if p.io != nil {
			p.io.Disconnect()
		}
	})
	return nil
}

var _ scheduler.Observer = (*Publisher)(nil)
