package ump

import "bytes"

// StripFraming removes a leading F0 and/or a trailing F7 from a SysEx byte
// stream (spec.md §4.8 "SysEx7 packetization").
func StripFraming(body []byte) []byte {
	if len(body) > 0 && body[0] == 0xF0 {
		body = body[1:]
	}
	if len(body) > 0 && body[len(body)-1] == 0xF7 {
		body = body[:len(body)-1]
	}
	return body
}

func makeSysEx7Packet(group, status byte, data []byte) Ump {
	var b [8]byte
	b[0] = byte(TypeData64)<<4 | group&0xF
	b[1] = status | byte(len(data)&0xF)
	copy(b[2:], data)
	w0 := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	w1 := uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	return Ump{Words: []uint32{w0, w1}}
}

// PacketizeSysEx7 strips F0/F7 framing from body and emits a sequence of
// type-3 SysEx7 UMPs, 6 payload bytes per packet, with status START/
// CONTINUE/END/COMPLETE assigned per spec.md §4.8. An empty body still
// yields one COMPLETE packet carrying zero bytes.
func PacketizeSysEx7(group byte, body []byte) []Ump {
	body = StripFraming(body)
	if len(body) == 0 {
		return []Ump{makeSysEx7Packet(group, StatusComplete, nil)}
	}
	var packets []Ump
	for start := 0; start < len(body); start += 6 {
		end := start + 6
		if end > len(body) {
			end = len(body)
		}
		var status byte
		switch {
		case start == 0 && end == len(body):
			status = StatusComplete
		case start == 0:
			status = StatusStart
		case end == len(body):
			status = StatusEnd
		default:
			status = StatusContinue
		}
		packets = append(packets, makeSysEx7Packet(group, status, body[start:end]))
	}
	return packets
}

// Defragmenter accumulates SysEx7 packets per group into reassembled SysEx
// bodies (spec.md §4.8 "SysEx7 defragmentation").
type Defragmenter struct {
	buffers map[byte]*bytes.Buffer
}

// NewDefragmenter returns an empty Defragmenter.
func NewDefragmenter() *Defragmenter {
	return &Defragmenter{buffers: make(map[byte]*bytes.Buffer)}
}

// Feed processes one UMP. It returns (body, true, nil) once a COMPLETE or
// END packet closes out a run; otherwise (nil, false, nil) while more
// packets are expected. A CONTINUE or END packet with no prior START
// yields IncompleteSysex7.
func (d *Defragmenter) Feed(u Ump) ([]byte, bool, error) {
	if u.Type() != TypeData64 || len(u.Words) < 2 {
		return nil, false, InvalidSysex
	}
	w0, w1 := u.Words[0], u.Words[1]
	b := [8]byte{
		byte(w0 >> 24), byte(w0 >> 16), byte(w0 >> 8), byte(w0),
		byte(w1 >> 24), byte(w1 >> 16), byte(w1 >> 8), byte(w1),
	}
	status := b[1] & 0xF0
	numBytes := int(b[1] & 0x0F)
	if numBytes > 6 {
		return nil, false, InvalidSysex
	}
	data := b[2 : 2+numBytes]
	group := u.Group()

	buf, ok := d.buffers[group]
	switch status {
	case StatusStart, StatusComplete:
		buf = &bytes.Buffer{}
		d.buffers[group] = buf
		ok = true
	}
	if !ok {
		return nil, false, IncompleteSysex7
	}
	buf.Write(data)

	if status == StatusEnd || status == StatusComplete {
		out := append([]byte(nil), buf.Bytes()...)
		delete(d.buffers, group)
		return out, true, nil
	}
	return nil, false, nil
}

// Reset discards any in-progress accumulation for group, e.g. after a
// transport-level resynchronization.
func (d *Defragmenter) Reset(group byte) {
	delete(d.buffers, group)
}
