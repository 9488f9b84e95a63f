package channel

// Capacity is the fixed size of the message slot in bytes. A write
// longer than Capacity commits the first Capacity bytes and reports
// truncation.
const Capacity = 256

// slot holds the single outstanding message. buf is owned storage and
// never escapes; valid counts the committed message bytes. Bytes in
// buf beyond valid are stale and must never be disclosed.
type slot struct {
	buf   [Capacity]byte
	valid int
}

// store replaces the message with p, truncating to Capacity. Returns
// the committed length and whether truncation occurred.
func (s *slot) store(p []byte) (int, bool) {
	accepted := len(p)
	truncated := false
	if accepted > Capacity {
		accepted = Capacity
		truncated = true
	}
	copy(s.buf[:accepted], p[:accepted])
	s.valid = accepted
	return accepted, truncated
}

// drain copies the message into dst and marks the slot empty. When dst
// is shorter than the message only the prefix is delivered; the slot
// drains either way so a message is consumed by exactly one read.
func (s *slot) drain(dst []byte) (delivered, shortfall int) {
	delivered = s.valid
	if delivered > len(dst) {
		delivered = len(dst)
		shortfall = s.valid - delivered
	}
	copy(dst[:delivered], s.buf[:delivered])
	s.valid = 0
	return delivered, shortfall
}

// length returns the committed message length.
func (s *slot) length() int {
	return s.valid
}
