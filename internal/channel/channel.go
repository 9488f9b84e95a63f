package channel

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Channel is the exclusive byte channel: one session gate in front of
// one message slot. It is constructed explicitly and owned by the
// service lifecycle; there is no package-level instance.
//
// Open and Close are lock-free CAS transitions. Slot operations take
// mu and re-verify holdership under it, so an in-flight copy cannot
// interleave with Seal or an admin eviction.
type Channel struct {
	mu     sync.Mutex
	gate   gate
	slot   slot
	sealed atomic.Bool
}

// Status is an observability snapshot of channel state.
type Status struct {
	Held        bool   `json:"held"`
	SessionID   uint64 `json:"session_id,omitempty"`
	ValidLength int    `json:"valid_length"`
	Sealed      bool   `json:"sealed"`
}

// New constructs an empty, unheld channel.
func New() *Channel {
	return &Channel{}
}

// Open admits a new session when the gate is free. It never blocks:
// a held gate fails fast with ErrBusy and the caller retries or gives
// up. Returns ErrSealed once shutdown has begun.
func (c *Channel) Open() (Token, error) {
	if c.sealed.Load() {
		return Token{}, ErrSealed
	}
	tok, err := c.gate.acquire()
	if err != nil {
		return Token{}, err
	}
	// Seal raced the acquire: give the slot back and reject.
	if c.sealed.Load() {
		_, _ = c.gate.evict()
		return Token{}, ErrSealed
	}
	return tok, nil
}

// Close releases the session named by tok. Exactly one Close matches
// each successful Open; a double close or a foreign token returns
// ErrNotHolder.
func (c *Channel) Close(tok Token) error {
	return c.gate.release(tok)
}

// Write replaces the slot message with p, accepting at most Capacity
// bytes. The committed length is returned; ErrTruncated signals that
// accepted < len(p) with the prefix still committed.
func (c *Channel) Write(tok Token, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gate.holds(tok) {
		return 0, ErrNotHolder
	}
	accepted, truncated := c.slot.store(p)
	if truncated {
		return accepted, ErrTruncated
	}
	return accepted, nil
}

// WriteFrom stages a copy-in from r and commits it as the slot
// message. The source is read before the slot is touched: a read
// failure returns ErrCopyFault with the previous message intact.
// Sources longer than Capacity commit the first Capacity bytes and
// report ErrTruncated. staged counts the bytes read from the source,
// capped at Capacity+1; a staged count past Capacity means the source
// held more than the slot could take, not an exact request size.
func (c *Channel) WriteFrom(tok Token, r io.Reader) (accepted, staged int, err error) {
	var staging [Capacity + 1]byte
	staged, err = readFull(r, staging[:])
	if err != nil {
		return 0, staged, fmt.Errorf("%w: %v", ErrCopyFault, err)
	}
	accepted, err = c.Write(tok, staging[:staged])
	return accepted, staged, err
}

// Read copies the current message into dst and drains the slot. An
// empty slot delivers zero bytes with a nil error; a dst shorter than
// the message delivers the prefix and reports ErrShortBuffer. Either
// way a successful read consumes the message.
func (c *Channel) Read(tok Token, dst []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gate.holds(tok) {
		return 0, ErrNotHolder
	}
	delivered, shortfall := c.slot.drain(dst)
	if shortfall > 0 {
		return delivered, ErrShortBuffer
	}
	return delivered, nil
}

// Evict force-releases a held gate without a token, returning the
// evicted session id. The slot is cleared so the next session never
// observes the evicted session's message.
func (c *Channel) Evict() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, held := c.gate.evict()
	if held {
		c.slot.valid = 0
	}
	return id, held
}

// Seal begins shutdown: further opens fail with ErrSealed and any held
// session is evicted. Returns the evicted session id so the caller can
// log the anomaly.
func (c *Channel) Seal() (uint64, bool) {
	c.sealed.Store(true)
	return c.Evict()
}

// Status reports current gate and slot state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	holder := c.gate.holder()
	return Status{
		Held:        holder != gateFree,
		SessionID:   holder,
		ValidLength: c.slot.length(),
		Sealed:      c.sealed.Load(),
	}
}

// readFull reads from r until buf is full or EOF. Unlike io.ReadAll it
// keeps the copy bounded by the caller's staging buffer.
func readFull(r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
