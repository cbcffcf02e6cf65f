package instruction

import (
	"encoding/binary"

	"github.com/atmx/vault-engine/internal/model"
)

// codec walks an instruction's fields in wire order, either writing them
// or reading them, so each instruction declares its layout once.
type codec struct {
	buf     []byte
	off     int
	reading bool
	err     error
}

func (c *codec) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.buf) {
		c.err = model.Fail(model.ErrInvalidInstruction, "payload truncated at byte %d", c.off)
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *codec) put(b []byte) { c.buf = append(c.buf, b...) }

func (c *codec) u8(v *uint8) {
	if !c.reading {
		c.put([]byte{*v})
		return
	}
	if b := c.take(1); b != nil {
		*v = b[0]
	}
}

func (c *codec) boolean(v *bool) {
	if !c.reading {
		var b uint8
		if *v {
			b = 1
		}
		c.u8(&b)
		return
	}
	var b uint8
	c.u8(&b)
	switch {
	case c.err != nil:
	case b > 1:
		c.err = model.Fail(model.ErrInvalidInstruction, "invalid bool byte %d", b)
	default:
		*v = b == 1
	}
}

func (c *codec) u16(v *uint16) {
	if !c.reading {
		c.buf = binary.LittleEndian.AppendUint16(c.buf, *v)
		return
	}
	if b := c.take(2); b != nil {
		*v = binary.LittleEndian.Uint16(b)
	}
}

func (c *codec) u32(v *uint32) {
	if !c.reading {
		c.buf = binary.LittleEndian.AppendUint32(c.buf, *v)
		return
	}
	if b := c.take(4); b != nil {
		*v = binary.LittleEndian.Uint32(b)
	}
}

func (c *codec) u64(v *uint64) {
	if !c.reading {
		c.buf = binary.LittleEndian.AppendUint64(c.buf, *v)
		return
	}
	if b := c.take(8); b != nil {
		*v = binary.LittleEndian.Uint64(b)
	}
}

func (c *codec) i64(v *int64) {
	u := uint64(*v)
	c.u64(&u)
	*v = int64(u)
}

func (c *codec) identity(v *model.Identity) {
	if !c.reading {
		c.put(v[:])
		return
	}
	if b := c.take(model.IdentityLength); b != nil {
		copy(v[:], b)
	}
}

// slot encodes an optional identity as the zero identity when unset.
func (c *codec) slot(v *model.Slot) {
	id, _ := v.Get()
	c.identity(&id)
	if c.reading && c.err == nil {
		*v = model.Slot{}
		if !id.IsZero() {
			*v = model.Some(id)
		}
	}
}
