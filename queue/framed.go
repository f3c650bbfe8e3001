package queue

// maxFrameLen bounds every frame slot's backing array. It is sized to the
// largest ingress buffer capacity atat supports out of the box. A longer
// body is refused, not truncated: NewFrame and TryPushBytes report false and
// no error frame is queued in its place, so ingress.Manager.Digest drops
// that event.
const maxFrameLen = 1024

// Frame is one queued response or URC: a length-delimited copy of bytes
// plus, for the response queue, an optional classification error. Frame is
// a plain value (fixed backing array), so pushing and popping it never
// allocates.
type Frame struct {
	data [maxFrameLen]byte
	n    int
	err  error
}

// NewFrame copies body into a new Frame, or returns false (and a zero Frame)
// if body is longer than maxFrameLen. err is
// nil for a successful response or a plain URC; non-nil for a
// classification error (ERROR, CME/CMS error, Aborted, Overflow, ...).
func NewFrame(body []byte, err error) (Frame, bool) {
	var f Frame
	if len(body) > maxFrameLen {
		return f, false
	}
	f.n = copy(f.data[:], body)
	f.err = err
	return f, true
}

// Bytes returns the frame's payload. Bytes has a value receiver, so the
// returned slice refers to a copy of the frame's array, not to a queue slot,
// and stays valid after later dequeues from the same queue.
func (f Frame) Bytes() []byte { return f.data[:f.n] }

// Err returns the frame's classification error, if any.
func (f Frame) Err() error { return f.err }

// Framed is a fixed-capacity SPSC ring of Frame values: the response and
// URC queues described by the protocol's data model. It is a thin
// specialization of Ring[Frame] kept as its own type so TryPushBytes can
// offer a convenient copy-in API without exposing Frame construction
// details to every caller.
type Framed struct {
	ring *Ring[Frame]
}

// NewFramed constructs a Framed ring able to hold capacity frames.
func NewFramed(capacity int) *Framed {
	return &Framed{ring: NewRing[Frame](capacity)}
}

// TryPushBytes enqueues a successful (err == nil) or failed frame built from
// body. It returns false if body does not fit in a frame slot (the caller
// should treat this as ErrBufferTooSmall) or if the ring is full (the
// caller should treat this as a dropped event).
func (q *Framed) TryPushBytes(body []byte, err error) bool {
	f, ok := NewFrame(body, err)
	if !ok {
		return false
	}
	return q.ring.TryPush(f)
}

// TryPop dequeues the next frame, if any.
func (q *Framed) TryPop() (Frame, bool) { return q.ring.TryPop() }

// Cap, Len, IsEmpty, IsFull mirror Ring's introspection API.
func (q *Framed) Cap() int      { return q.ring.Cap() }
func (q *Framed) Len() int      { return q.ring.Len() }
func (q *Framed) IsEmpty() bool { return q.ring.IsEmpty() }
func (q *Framed) IsFull() bool  { return q.ring.IsFull() }
