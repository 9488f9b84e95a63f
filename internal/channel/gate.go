package channel

import "sync/atomic"

// gateFree is the state word value while no session holds the gate.
// Session ids start at 1 so the free value is never a valid holder.
const gateFree uint64 = 0

// Token identifies one session admitted through the gate. The zero
// Token is never issued.
type Token struct {
	id uint64
}

// ID returns the session id carried by the token.
func (t Token) ID() uint64 {
	return t.id
}

// Valid reports whether the token was issued by an Open.
func (t Token) Valid() bool {
	return t.id != gateFree
}

// SessionToken rebuilds a token from a session id carried across a
// boundary (the HTTP header, the CLI). Holdership is still verified on
// every slot operation, so a fabricated id only ever matches while the
// session it names is live.
func SessionToken(id uint64) Token {
	return Token{id: id}
}

// gate is the two-state exclusivity machine {Free, Held(sessionID)}.
// Transitions are single CAS operations: acquire never blocks and
// never queues, so there is no fairness among concurrent openers.
type gate struct {
	state  atomic.Uint64
	nextID atomic.Uint64
}

func (g *gate) acquire() (Token, error) {
	id := g.nextID.Add(1)
	if !g.state.CompareAndSwap(gateFree, id) {
		return Token{}, ErrBusy
	}
	return Token{id: id}, nil
}

func (g *gate) release(tok Token) error {
	if !tok.Valid() || !g.state.CompareAndSwap(tok.id, gateFree) {
		return ErrNotHolder
	}
	return nil
}

// holds reports whether tok is the current holder.
func (g *gate) holds(tok Token) bool {
	return tok.Valid() && g.state.Load() == tok.id
}

// holder returns the current session id, or gateFree.
func (g *gate) holder() uint64 {
	return g.state.Load()
}

// evict force-releases the gate, returning the evicted session id when
// one was held. Shutdown and admin use only.
func (g *gate) evict() (uint64, bool) {
	prev := g.state.Swap(gateFree)
	return prev, prev != gateFree
}
