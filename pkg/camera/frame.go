package camera

// Ownership tells who is responsible for the bytes of a Frame.
type Ownership uint8

const (
	// Released marks a frame whose buffer has already been given back.
	Released Ownership = iota
	// Borrowed frames point into a device buffer slot that must be
	// returned to the device.
	Borrowed
	// Owned frames hold a buffer from a software encode that must be
	// freed.
	Owned
)

func (o Ownership) String() string {
	switch o {
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	default:
		return "released"
	}
}

// Frame is one JPEG image returned by Manager.Capture. Exactly one
// Manager.Release must follow every successful capture.
type Frame struct {
	ownership Ownership
	data      []byte
	slot      *Buffer
	owned     OwnedBuffer
}

func borrowedFrame(slot *Buffer) *Frame {
	return &Frame{ownership: Borrowed, data: slot.Data, slot: slot}
}

func ownedFrame(buf OwnedBuffer) *Frame {
	return &Frame{ownership: Owned, data: buf.Bytes(), owned: buf}
}

// Bytes returns the JPEG payload. It must not be used after release.
func (f *Frame) Bytes() []byte {
	return f.data
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return len(f.data)
}

// Ownership reports how the frame is currently held.
func (f *Frame) Ownership() Ownership {
	return f.ownership
}

// release gives the buffer back according to its ownership and reports
// whether anything was released.
func (f *Frame) release(dev Device) bool {
	switch f.ownership {
	case Borrowed:
		dev.ReturnFrame(f.slot)
	case Owned:
		f.owned.Free()
	default:
		return false
	}
	f.ownership = Released
	f.data = nil
	f.slot = nil
	f.owned = nil
	return true
}
