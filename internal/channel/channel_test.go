package channel

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/simbridge/internal/testutil/testlog"
)

func mustOpen(t *testing.T, c *Channel) Token {
	t.Helper()
	tok, err := c.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return tok
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	accepted, err := c.Write(tok, []byte("hello"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if accepted != 5 {
		t.Fatalf("unexpected accepted count: %d", accepted)
	}

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 5 || string(dst[:n]) != "hello" {
		t.Fatalf("unexpected message: %q (%d bytes)", dst[:n], n)
	}

	if err := c.Close(tok); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSecondOpenWhileHeldIsBusy(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)
	defer func() { _ = c.Close(tok) }()

	if _, err := c.Open(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestOversizedWriteTruncatesToCapacity(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	payload := bytes.Repeat([]byte{'x'}, 300)
	accepted, err := c.Write(tok, payload)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if accepted != Capacity {
		t.Fatalf("unexpected accepted count: %d", accepted)
	}

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != Capacity {
		t.Fatalf("unexpected delivered count: %d", n)
	}
	for i, b := range dst[:n] {
		if b != 'x' {
			t.Fatalf("unexpected byte at %d: %q", i, b)
		}
	}
}

func TestReadWithoutWriteDeliversNothing(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty delivery, got %d bytes", n)
	}
}

func TestReadDrainsExactlyOnce(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	if _, err := c.Write(tok, []byte("drain me")); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil || n != 8 {
		t.Fatalf("first read: n=%d err=%v", n, err)
	}
	n, err = c.Read(tok, dst)
	if err != nil || n != 0 {
		t.Fatalf("second read should be empty: n=%d err=%v", n, err)
	}
}

func TestOverwriteReplacesWholeMessage(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	if _, err := c.Write(tok, bytes.Repeat([]byte{'a'}, 200)); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if _, err := c.Write(tok, []byte("bb")); err != nil {
		t.Fatalf("write b: %v", err)
	}

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 || string(dst[:n]) != "bb" {
		t.Fatalf("overwrite leaked prior message: %q (%d bytes)", dst[:n], n)
	}
}

func TestReopenAfterClose(t *testing.T) {
	testlog.Start(t)

	c := New()
	first := mustOpen(t, c)
	if err := c.Close(first); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := mustOpen(t, c)
	if second.ID() == first.ID() {
		t.Fatalf("session ids must not repeat: %d", second.ID())
	}
	if err := c.Close(second); err != nil {
		t.Fatalf("close second: %v", err)
	}
}

func TestWriteReadCloseRequireCurrentToken(t *testing.T) {
	testlog.Start(t)

	c := New()
	stale := mustOpen(t, c)
	if err := c.Close(stale); err != nil {
		t.Fatalf("close: %v", err)
	}
	live := mustOpen(t, c)
	defer func() { _ = c.Close(live) }()

	if _, err := c.Write(stale, []byte("nope")); !errors.Is(err, ErrNotHolder) {
		t.Fatalf("stale write: expected ErrNotHolder, got %v", err)
	}
	if _, err := c.Read(stale, make([]byte, 8)); !errors.Is(err, ErrNotHolder) {
		t.Fatalf("stale read: expected ErrNotHolder, got %v", err)
	}
	if err := c.Close(stale); !errors.Is(err, ErrNotHolder) {
		t.Fatalf("stale close: expected ErrNotHolder, got %v", err)
	}
	if err := c.Close(Token{}); !errors.Is(err, ErrNotHolder) {
		t.Fatalf("zero token close: expected ErrNotHolder, got %v", err)
	}
}

func TestDoubleCloseIsRejected(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)
	if err := c.Close(tok); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(tok); !errors.Is(err, ErrNotHolder) {
		t.Fatalf("double close: expected ErrNotHolder, got %v", err)
	}
}

func TestShortDestinationDeliversPrefixAndDrains(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	if _, err := c.Write(tok, []byte("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := make([]byte, 4)
	n, err := c.Read(tok, dst)
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if n != 4 || string(dst[:n]) != "0123" {
		t.Fatalf("unexpected prefix: %q", dst[:n])
	}

	// The remainder is consumed, not readable later.
	n, err = c.Read(tok, make([]byte, Capacity))
	if err != nil || n != 0 {
		t.Fatalf("slot should be drained: n=%d err=%v", n, err)
	}
}

func TestWriteFromCommitsOnSuccess(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	accepted, staged, err := c.WriteFrom(tok, strings.NewReader("streamed"))
	if err != nil {
		t.Fatalf("write from: %v", err)
	}
	if accepted != 8 || staged != 8 {
		t.Fatalf("unexpected counts: accepted=%d staged=%d", accepted, staged)
	}

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil || string(dst[:n]) != "streamed" {
		t.Fatalf("unexpected message: %q err=%v", dst[:n], err)
	}
}

func TestWriteFromTruncatesLongSource(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	src := strings.NewReader(strings.Repeat("x", 300))
	accepted, staged, err := c.WriteFrom(tok, src)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if accepted != Capacity {
		t.Fatalf("unexpected accepted count: %d", accepted)
	}
	// The staged count only ever reaches one byte past capacity: enough
	// to prove the source held more than the slot took.
	if staged != Capacity+1 {
		t.Fatalf("unexpected staged count: %d", staged)
	}
}

type faultyReader struct {
	prefix []byte
	served bool
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		return copy(p, r.prefix), nil
	}
	return 0, errors.New("source memory inaccessible")
}

func TestWriteFromFaultLeavesPriorMessage(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)

	if _, err := c.Write(tok, []byte("keep")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := c.WriteFrom(tok, &faultyReader{prefix: []byte("partial")})
	if !errors.Is(err, ErrCopyFault) {
		t.Fatalf("expected ErrCopyFault, got %v", err)
	}

	dst := make([]byte, Capacity)
	n, err := c.Read(tok, dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(dst[:n]) != "keep" {
		t.Fatalf("prior message not preserved: %q", dst[:n])
	}
}

func TestSealEvictsHolderAndRejectsOpens(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)
	if _, err := c.Write(tok, []byte("stuck")); err != nil {
		t.Fatalf("write: %v", err)
	}

	id, held := c.Seal()
	if !held || id != tok.ID() {
		t.Fatalf("expected eviction of session %d, got id=%d held=%v", tok.ID(), id, held)
	}
	if _, err := c.Open(); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	if _, err := c.Write(tok, []byte("late")); !errors.Is(err, ErrNotHolder) {
		t.Fatalf("evicted session write: expected ErrNotHolder, got %v", err)
	}
}

func TestEvictClearsSlot(t *testing.T) {
	testlog.Start(t)

	c := New()
	tok := mustOpen(t, c)
	if _, err := c.Write(tok, []byte("secret")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, held := c.Evict(); !held {
		t.Fatalf("expected a held session to evict")
	}

	next := mustOpen(t, c)
	dst := make([]byte, Capacity)
	n, err := c.Read(next, dst)
	if err != nil || n != 0 {
		t.Fatalf("evicted message leaked to next session: n=%d err=%v", n, err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	testlog.Start(t)

	c := New()
	st := c.Status()
	if st.Held || st.ValidLength != 0 || st.Sealed {
		t.Fatalf("unexpected initial status: %+v", st)
	}

	tok := mustOpen(t, c)
	if _, err := c.Write(tok, []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	st = c.Status()
	if !st.Held || st.SessionID != tok.ID() || st.ValidLength != 3 {
		t.Fatalf("unexpected held status: %+v", st)
	}
}
