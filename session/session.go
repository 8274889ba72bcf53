// Package session implements the transport shim (C9) of spec.md §4.9: it
// bridges a byte-oriented MIDI 1.0 transport or a word-oriented UMP
// transport to the Messenger, via SysEx7 packetization/defragmentation
// (package ump).
package session

import (
	"github.com/sirupsen/logrus"

	"midici"
	"midici/ump"
)

// Mode selects which framing a Session's transport speaks.
type Mode int

const (
	ModeMIDI1 Mode = iota
	ModeUMP
)

// ByteSender writes a complete, already-framed (F0 ... F7) MIDI 1.0 SysEx
// message to the transport.
type ByteSender func(data []byte) error

// WordSender writes one UMP's words to the transport.
type WordSender func(words []uint32) error

// MessageHandler receives a reassembled, framing-stripped SysEx body that
// begins with the MIDI-CI prefix, for forwarding to the Messenger.
type MessageHandler func(group byte, body []byte)

// OtherHandler receives a reassembled SysEx body that is not a MIDI-CI
// message (spec.md §4.9: "logged ... or ignored").
type OtherHandler func(group byte, body []byte)

// Session is the transport shim for one connection.
type Session struct {
	mode       Mode
	byteSend   ByteSender
	wordSend   WordSender
	onMessage  MessageHandler
	onOther    OtherHandler
	defrag     *ump.Defragmenter
	translator *ump.Translator
	log        *logrus.Entry
}

// New constructs a Session. byteSend is used when mode is ModeMIDI1,
// wordSend when mode is ModeUMP; the other may be nil.
func New(mode Mode, byteSend ByteSender, wordSend WordSender, onMessage MessageHandler, onOther OtherHandler, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		mode:       mode,
		byteSend:   byteSend,
		wordSend:   wordSend,
		onMessage:  onMessage,
		onOther:    onOther,
		defrag:     ump.NewDefragmenter(),
		translator: ump.NewTranslator(),
		log:        log,
	}
}

// OnBytes accepts one complete MIDI 1.0 SysEx message, F0/F7-framed. It is
// the input path for ModeMIDI1.
func (s *Session) OnBytes(data []byte) {
	body := ump.StripFraming(data)
	s.dispatch(0, body)
}

// OnWords accepts a run of UMP words, splitting it into individual
// packets by message type word count and routing SysEx7 packets through
// the defragmenter. It is the input path for ModeUMP.
func (s *Session) OnWords(words []uint32) {
	for len(words) > 0 {
		n := wordCount(ump.MessageType(words[0] >> 28 & 0xF))
		if n > len(words) {
			s.log.WithField("component", "session").Warn("truncated UMP packet")
			return
		}
		packet := ump.Ump{Words: append([]uint32(nil), words[:n]...)}
		words = words[n:]

		if packet.Type() != ump.TypeData64 {
			continue
		}
		body, complete, err := s.defrag.Feed(packet)
		if err != nil {
			s.log.WithError(err).Warn("sysex7 defragmentation error")
			continue
		}
		if !complete {
			continue
		}
		s.dispatch(packet.Group(), body)
	}
}

func (s *Session) dispatch(group byte, body []byte) {
	if midici.LooksLikeMessage(body) {
		if s.onMessage != nil {
			s.onMessage(group, body)
		}
		return
	}
	if s.onOther != nil {
		s.onOther(group, body)
	}
}

// wordCount returns how many 32-bit words a UMP of the given type occupies.
func wordCount(t ump.MessageType) int {
	switch t {
	case 0x0, 0x1, 0x2, 0x6, 0x7:
		return 1
	case ump.TypeData64, ump.TypeMIDI2ChannelVoice, 0x8, 0x9, 0xA:
		return 2
	case 0xB, 0xC:
		return 3
	case 0x5, 0xD, 0xE, 0xF:
		return 4
	default:
		return 1
	}
}

// Send transmits a MIDI-CI SysEx body (already stripped of F0/F7 by the
// Messenger) over the configured transport, framing it for MIDI1 or
// packetizing it into SysEx7 UMPs (spec.md §4.9 "Output").
func (s *Session) Send(group byte, body []byte) error {
	switch s.mode {
	case ModeMIDI1:
		framed := make([]byte, 0, len(body)+2)
		framed = append(framed, 0xF0)
		framed = append(framed, body...)
		framed = append(framed, 0xF7)
		return s.byteSend(framed)
	case ModeUMP:
		for _, packet := range ump.PacketizeSysEx7(group, body) {
			if err := s.wordSend(packet.Words); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
