package kfmt

import "io"

// ringBufferSize defines size of the ring buffer that buffers early Printf
// output. Its default size is selected so it can buffer the contents of a
// standard 80*25 text-mode console. The ring buffer size must always be a
// power of 2.
const ringBufferSize = 2048

// ringBuffer keeps the last ringBufferSize bytes written to it. Once full,
// each write overwrites the oldest data.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns the number of bytes read (0
// <= n <= len(p)) and io.EOF once the buffer has been drained.
func (rb *ringBuffer) Read(p []byte) (n int, err error) {
	var avail int
	switch {
	case rb.rIndex == rb.wIndex:
		return 0, io.EOF
	case rb.rIndex < rb.wIndex:
		avail = rb.wIndex - rb.rIndex
	default:
		// read up to the end of the buffer; the wrapped part is returned
		// by the next call
		avail = len(rb.buffer) - rb.rIndex
	}

	if n = len(p); n > avail {
		n = avail
	}

	copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
	rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)

	return n, nil
}
