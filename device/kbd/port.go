package kbd

// StatusOutputFull is set in the controller status register while the data
// port holds an unread byte.
const StatusOutputFull = uint8(1 << 0)

// Port is the data and status port pair of the keyboard controller.
type Port interface {
	// ReadStatus returns the controller status register.
	ReadStatus() uint8

	// ReadData returns the byte latched by the controller.
	ReadData() uint8
}

// FIFOPort is a Port backed by a buffered channel. Hosts push scancodes
// into it from any goroutine and raise the keyboard interrupt line once per
// pushed byte.
type FIFOPort struct {
	ch chan uint8
}

// NewFIFOPort returns a port that can latch up to depth unread bytes.
func NewFIFOPort(depth int) *FIFOPort {
	return &FIFOPort{ch: make(chan uint8, depth)}
}

// Push latches b. It returns false if the port is full and b was dropped.
func (p *FIFOPort) Push(b uint8) bool {
	select {
	case p.ch <- b:
		return true
	default:
		return false
	}
}

// ReadStatus implements Port.
func (p *FIFOPort) ReadStatus() uint8 {
	if len(p.ch) == 0 {
		return 0
	}

	return StatusOutputFull
}

// ReadData implements Port. Reading an empty port returns 0, which is not
// a valid make code.
func (p *FIFOPort) ReadData() uint8 {
	select {
	case b := <-p.ch:
		return b
	default:
		return 0
	}
}

// Len returns the number of latched bytes that have not been read yet. It is
// safe to call from any goroutine.
func (p *FIFOPort) Len() int {
	return len(p.ch)
}
