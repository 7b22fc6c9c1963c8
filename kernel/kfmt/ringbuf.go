package kfmt

// ringBufferSize defines size of the ring buffer that buffers early Printf
// output. Its default size is selected so it can buffer the contents of a
// standard 80*25 text-mode console. The ring buffer size must always be a
// power of 2.
const ringBufferSize = 2048

// ringBuffer models a ring buffer of size ringBufferSize. This buffer is used
// for capturing the output of Printf before the console sinks are
// initialized.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
	full           bool
}

// PutChar implements Writer.
func (rb *ringBuffer) PutChar(c byte) {
	rb.buffer[rb.wIndex] = c
	rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
	if rb.full {
		rb.rIndex = rb.wIndex
	} else if rb.rIndex == rb.wIndex {
		rb.full = true
	}
}

// DrainTo copies any buffered bytes to w, emptying the buffer.
func (rb *ringBuffer) DrainTo(w Writer) {
	for rb.full || rb.rIndex != rb.wIndex {
		w.PutChar(rb.buffer[rb.rIndex])
		rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		rb.full = false
	}
}
