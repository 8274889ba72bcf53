package ump

// MIDI1 status nibbles relevant to channel voice translation.
const (
	midi1NoteOff       = 0x8
	midi1NoteOn        = 0x9
	midi1ControlChange = 0xB

	ccBankMSB  = 0
	ccBankLSB  = 32
	ccNRPNLSB  = 98
	ccNRPNMSB  = 99
	ccRPNLSB   = 100
	ccRPNMSB   = 101
	ccDataLSB  = 38
	ccDataMSB  = 6
)

type paramRef struct {
	msb, lsb byte
	valid    bool
}

func (p *paramRef) setMSB(v byte) {
	p.msb = v
	p.valid = !(p.msb == 0x7F && p.lsb == 0x7F)
}

func (p *paramRef) setLSB(v byte) {
	p.lsb = v
	p.valid = !(p.msb == 0x7F && p.lsb == 0x7F)
}

type channelState struct {
	bank    paramRef
	rpn     paramRef
	nrpn    paramRef
	dteLSB  byte
	haveLSB bool
}

type channelKey struct {
	group, channel byte
}

// Translator converts MIDI 1.0 channel voice bytes to UMP MIDI 2.0 channel
// voice words and back, holding the per-channel bank/RPN/NRPN/DTE state
// described in spec.md §4.8.
type Translator struct {
	AllowReorderedDTE bool
	channels          map[channelKey]*channelState
}

// NewTranslator returns a Translator with empty per-channel state.
func NewTranslator() *Translator {
	return &Translator{channels: make(map[channelKey]*channelState)}
}

func (t *Translator) state(group, channel byte) *channelState {
	k := channelKey{group, channel}
	cs, ok := t.channels[k]
	if !ok {
		cs = &channelState{
			bank: paramRef{msb: 0x80, lsb: 0x80},
			rpn:  paramRef{msb: 0x80, lsb: 0x80},
			nrpn: paramRef{msb: 0x80, lsb: 0x80},
		}
		t.channels[k] = cs
	}
	return cs
}

// MIDI1ToUMP consumes one MIDI 1.0 channel voice message (status byte's
// high nibble 0x8/0x9/0xB, data1, data2) and returns zero or more UMP
// words to emit. Bank-select and RPN/NRPN selector controllers update
// internal state without emitting; DTE LSB (CC38) buffers pending data;
// DTE MSB (CC6) emits a combined RPN/NRPN message when a parameter is
// selected (spec.md §4.8).
func (t *Translator) MIDI1ToUMP(group, statusByte, data1, data2 byte) ([]Ump, ReturnCode) {
	kind := statusByte >> 4
	channel := statusByte & 0x0F
	cs := t.state(group, channel)

	switch kind {
	case midi1NoteOn, midi1NoteOff:
		velocity16 := uint32(data2) << 9 // 7-bit -> 16-bit, left-justified
		word0 := uint32(TypeMIDI2ChannelVoice)<<28 | uint32(group&0xF)<<24 | uint32(kind)<<20 | uint32(channel)<<16 | uint32(data1)<<8
		word1 := velocity16 << 16
		return []Ump{{Words: []uint32{word0, word1}}}, OK

	case midi1ControlChange:
		switch data1 {
		case ccBankMSB:
			cs.bank.setMSB(data2)
			return nil, OK
		case ccBankLSB:
			cs.bank.setLSB(data2)
			return nil, OK
		case ccRPNMSB:
			cs.rpn.setMSB(data2)
			return nil, OK
		case ccRPNLSB:
			cs.rpn.setLSB(data2)
			return nil, OK
		case ccNRPNMSB:
			cs.nrpn.setMSB(data2)
			return nil, OK
		case ccNRPNLSB:
			cs.nrpn.setLSB(data2)
			return nil, OK
		case ccDataLSB:
			if !cs.rpn.valid && !cs.nrpn.valid {
				if !t.AllowReorderedDTE {
					return nil, InvalidDteSequence
				}
			}
			cs.dteLSB = data2
			cs.haveLSB = true
			return nil, OK
		case ccDataMSB:
			if !cs.rpn.valid && !cs.nrpn.valid {
				return []Ump{t.plainControlChange(group, channel, data1, data2)}, OK
			}
			lsb := byte(0)
			if cs.haveLSB {
				lsb = cs.dteLSB
			}
			isRPN := cs.rpn.valid
			var paramMSB, paramLSB byte
			if isRPN {
				paramMSB, paramLSB = cs.rpn.msb, cs.rpn.lsb
			} else {
				paramMSB, paramLSB = cs.nrpn.msb, cs.nrpn.lsb
			}
			cs.haveLSB = false
			return []Ump{t.parameterMessage(group, channel, isRPN, paramMSB, paramLSB, data2, lsb)}, OK
		default:
			return []Ump{t.plainControlChange(group, channel, data1, data2)}, OK
		}
	default:
		return nil, InvalidStatus
	}
}

func (t *Translator) plainControlChange(group, channel, controller, value byte) Ump {
	word0 := uint32(TypeMIDI2ChannelVoice)<<28 | uint32(group&0xF)<<24 | uint32(midi1ControlChange)<<20 | uint32(channel)<<16 | uint32(controller)<<8
	word1 := uint32(value) << 25 // 7-bit -> 32-bit, left-justified
	return Ump{Words: []uint32{word0, word1}}
}

// parameterMessage builds the combined RPN (status 0x2) / NRPN (status
// 0x3) UMP MIDI2 message with data field (msb<<25)|(lsb<<18) per spec.md
// §4.8.
func (t *Translator) parameterMessage(group, channel byte, isRPN bool, paramMSB, paramLSB, msb, lsb byte) Ump {
	status := uint32(0x3)
	if isRPN {
		status = 0x2
	}
	word0 := uint32(TypeMIDI2ChannelVoice)<<28 | uint32(group&0xF)<<24 | status<<20 | uint32(channel)<<16 | uint32(paramMSB)<<8 | uint32(paramLSB)
	word1 := uint32(msb)<<25 | uint32(lsb)<<18
	return Ump{Words: []uint32{word0, word1}}
}

// UMPToMIDI1 converts a MIDI2 channel voice UMP (Note On/Off or Control
// Change) back to classic 3-byte MIDI1 bytes, losing the extra precision
// UMP carries (spec.md §4.8 "UMP -> MIDI1"). RPN/NRPN and other UMP-only
// message kinds have no MIDI1 equivalent and return InvalidStatus.
func (t *Translator) UMPToMIDI1(u Ump) ([]byte, ReturnCode) {
	if u.Type() != TypeMIDI2ChannelVoice || len(u.Words) < 2 {
		return nil, InvalidStatus
	}
	w0, w1 := u.Words[0], u.Words[1]
	status := byte(w0 >> 20 & 0xF)
	channel := byte(w0 >> 16 & 0xF)
	byte2 := byte(w0 >> 8 & 0xFF)

	switch status {
	case midi1NoteOn, midi1NoteOff:
		velocity7 := byte(w1 >> 25 & 0x7F)
		return []byte{status<<4 | channel, byte2, velocity7}, OK
	case midi1ControlChange:
		value7 := byte(w1 >> 25 & 0x7F)
		return []byte{midi1ControlChange<<4 | channel, byte2, value7}, OK
	default:
		return nil, InvalidStatus
	}
}
