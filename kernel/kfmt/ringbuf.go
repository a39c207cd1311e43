package kfmt

import "io"

// earlyBufferSize is the capacity of the buffer holding output produced before
// a console sink is attached. It must be a power of 2; bring-up of every core
// logs a few lines before the console exists.
const earlyBufferSize = 4096

// earlyBuffer keeps the most recent earlyBufferSize bytes written to it.
// head and tail are free-running byte counters; their difference is the
// number of buffered bytes.
type earlyBuffer struct {
	data       [earlyBufferSize]byte
	head, tail uint64

	// dropped counts the bytes overwritten before anyone read them.
	dropped uint64
}

// Write implements io.Writer. It never fails; when the buffer is full the
// oldest bytes are discarded.
func (eb *earlyBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		eb.data[eb.tail&(earlyBufferSize-1)] = b
		eb.tail++
	}

	if used := eb.tail - eb.head; used > earlyBufferSize {
		eb.dropped += used - earlyBufferSize
		eb.head = eb.tail - earlyBufferSize
	}
	return len(p), nil
}

// Read implements io.Reader and drains the buffer in write order.
func (eb *earlyBuffer) Read(p []byte) (int, error) {
	if eb.head == eb.tail {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && eb.head != eb.tail {
		p[n] = eb.data[eb.head&(earlyBufferSize-1)]
		eb.head++
		n++
	}
	return n, nil
}

// Dropped returns the number of bytes lost to overflow and resets the count.
func (eb *earlyBuffer) Dropped() uint64 {
	n := eb.dropped
	eb.dropped = 0
	return n
}

func (eb *earlyBuffer) reset() {
	eb.head, eb.tail, eb.dropped = 0, 0, 0
}
