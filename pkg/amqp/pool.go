package amqp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	errPoolClosed = errors.New("channel pool closed")
	errConnClosed = errors.New("amqp connection closed")
)

// ChannelPool keeps a bounded number of confirm-mode channels alive.
// Invariant: len(permits) == total channels (idle + borrowed) <= capacity.
type ChannelPool struct {
	conn     *amqp.Connection
	pool     chan *amqp.Channel
	capacity int

	closed  atomic.Bool
	newChMu sync.Mutex
	permits chan struct{}
}

// NewChannelPool builds an empty pool; channels are opened lazily.
func NewChannelPool(conn *amqp.Connection, capacity int) *ChannelPool {
	if capacity <= 0 {
		capacity = defaultPoolSize
	}
	return &ChannelPool{
		conn:     conn,
		pool:     make(chan *amqp.Channel, capacity),
		capacity: capacity,
		permits:  make(chan struct{}, capacity),
	}
}

// Borrow returns an idle channel or opens a new one while under capacity.
func (cp *ChannelPool) Borrow(ctx context.Context, retryDelay time.Duration) (*amqp.Channel, error) {
	if cp.closed.Load() {
		return nil, errPoolClosed
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case ch, ok := <-cp.pool:
			if !ok {
				return nil, errPoolClosed
			}
			if cp.conn.IsClosed() || ch.IsClosed() {
				_ = safeClose(ch)
				nch, err := cp.newChannel()
				if err != nil {
					time.Sleep(retryDelay)
					continue
				}
				return nch, nil
			}
			return ch, nil

		default:
			if cp.conn.IsClosed() {
				return nil, errConnClosed
			}
			select {
			case cp.permits <- struct{}{}:
				nch, err := cp.newChannel()
				if err != nil {
					<-cp.permits
					time.Sleep(retryDelay)
					continue
				}
				return nch, nil

			case <-ctx.Done():
				return nil, ctx.Err()

			case <-time.After(retryDelay):
			}
		}
	}
}

// Return hands a channel back; broken channels are closed and their permit released.
func (cp *ChannelPool) Return(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	if cp.closed.Load() || cp.conn.IsClosed() || ch.IsClosed() {
		_ = safeClose(ch)
		cp.releasePermit()
		return
	}
	select {
	case cp.pool <- ch:
	default:
		_ = safeClose(ch)
		cp.releasePermit()
	}
}

// Discard closes a channel that must not be reused, e.g. after a failed publish.
func (cp *ChannelPool) Discard(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	_ = safeClose(ch)
	cp.releasePermit()
}

// Close drains and closes idle channels.
func (cp *ChannelPool) Close() {
	if cp.closed.Swap(true) {
		return
	}
	close(cp.pool)
	for ch := range cp.pool {
		_ = safeClose(ch)
		cp.releasePermit()
	}
}

func (cp *ChannelPool) releasePermit() {
	select {
	case <-cp.permits:
	default:
	}
}

func (cp *ChannelPool) newChannel() (*amqp.Channel, error) {
	cp.newChMu.Lock()
	defer cp.newChMu.Unlock()
	if cp.conn.IsClosed() {
		return nil, errConnClosed
	}
	ch, err := cp.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = safeClose(ch)
		return nil, err
	}
	return ch, nil
}

func safeClose(ch *amqp.Channel) error {
	if ch == nil {
		return nil
	}
	defer func() { _ = recover() }()
	return ch.Close()
}
