package messenger

import "sync"

type messageCounterKey struct {
	direction string
	subID2    byte
}

type nakCounterKey struct {
	status byte
}

// stats accumulates the Messenger's running midici_messages_total and
// midici_naks_total counts (spec.md §4.11). A mutex-guarded map is enough
// here: the metrics package reads these cumulative totals directly at
// Collect time, so there is no separate client_golang counter to keep in
// sync.
type stats struct {
	mu       sync.Mutex
	messages map[messageCounterKey]uint64
	naks     map[nakCounterKey]uint64
}

func newStats() *stats {
	return &stats{
		messages: make(map[messageCounterKey]uint64),
		naks:     make(map[nakCounterKey]uint64),
	}
}

func (s *stats) recordMessage(direction string, subID2 byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[messageCounterKey{direction, subID2}]++
}

func (s *stats) recordNAK(status byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.naks[nakCounterKey{status}]++
}

// MessageCount is one (direction, subID2, count) row of midici_messages_total.
type MessageCount struct {
	Direction string
	SubID2    byte
	Count     uint64
}

// NAKCount is one (status, count) row of midici_naks_total.
type NAKCount struct {
	Status byte
	Count  uint64
}

func (s *stats) messageCounts() []MessageCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MessageCount, 0, len(s.messages))
	for k, v := range s.messages {
		out = append(out, MessageCount{Direction: k.direction, SubID2: k.subID2, Count: v})
	}
	return out
}

func (s *stats) nakCounts() []NAKCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NAKCount, 0, len(s.naks))
	for k, v := range s.naks {
		out = append(out, NAKCount{Status: k.status, Count: v})
	}
	return out
}
