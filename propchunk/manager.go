// Package propchunk implements the Property Chunk Manager (spec.md §4.6): a
// single table keyed by (sourceMuid, requestId) that reassembles a
// multi-chunk property payload, enforcing strictly increasing chunk
// indices and evicting idle entries.
package propchunk

import (
	"bytes"
	"sync"
	"time"

	"midici"
)

// DefaultIdleTimeout is the eviction window for a pending chunk entry with
// no activity (spec.md §3 PendingChunk).
const DefaultIdleTimeout = 30 * time.Second

type key struct {
	source midici.MUID
	reqID  byte
}

// PendingChunk accumulates the body bytes of a multi-chunk property
// message until its final chunk arrives (spec.md §3).
type PendingChunk struct {
	Timestamp      time.Time
	SourceMUID     midici.MUID
	RequestId      byte
	HeaderJSON     []byte
	lastIndex      uint16
	accumulated    bytes.Buffer
}

// Manager is the C6 chunk table.
type Manager struct {
	mu      sync.Mutex
	entries map[key]*PendingChunk
	now     func() time.Time
}

// New returns an empty chunk manager.
func New() *Manager {
	return &Manager{entries: make(map[key]*PendingChunk), now: time.Now}
}

// HasPendingChunk reports whether an in-progress entry exists for the key.
func (m *Manager) HasPendingChunk(source midici.MUID, reqID byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key{source, reqID}]
	return ok
}

// GetPendingHeader returns the headerJSON recorded for the first chunk of
// the key, if any entry exists.
func (m *Manager) GetPendingHeader(source midici.MUID, reqID byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key{source, reqID}]
	if !ok {
		return nil, false
	}
	return e.HeaderJSON, true
}

// AddPendingChunk appends body to the entry for (source, reqID), creating
// it if absent. chunkIndex must be strictly greater than the last index
// seen for this key, and headerJSON must match an existing entry's header
// byte-for-byte; either violation is a protocol error
// (ErrChunksOutOfSequence) and drops the entry, per spec.md §4.6.
func (m *Manager) AddPendingChunk(now time.Time, source midici.MUID, reqID byte, chunkIndex uint16, headerJSON, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{source, reqID}
	e, exists := m.entries[k]
	if !exists {
		e = &PendingChunk{Timestamp: now, SourceMUID: source, RequestId: reqID, HeaderJSON: append([]byte(nil), headerJSON...)}
		m.entries[k] = e
	} else {
		if !bytes.Equal(e.HeaderJSON, headerJSON) {
			delete(m.entries, k)
			return midici.ErrChunksOutOfSequence
		}
		if chunkIndex <= e.lastIndex {
			delete(m.entries, k)
			return midici.ErrChunksOutOfSequence
		}
	}
	e.lastIndex = chunkIndex
	e.Timestamp = now
	e.accumulated.Write(body)
	return nil
}

// FinishPendingChunk appends finalBody, removes the entry, and returns the
// reassembled (headerJSON, fullBody). If no entry exists, finalBody is
// treated as the whole body and returned as-is with a nil header. The
// messenger routes every single-chunk message through here, as well as a
// terminal chunk whose earlier chunks were never seen, and on a nil header
// keeps the chunk's own header.
func (m *Manager) FinishPendingChunk(source midici.MUID, reqID byte, chunkIndex uint16, headerJSON, finalBody []byte) ([]byte, []byte, error) {
	m.mu.Lock()
	k := key{source, reqID}
	e, exists := m.entries[k]
	if !exists {
		m.mu.Unlock()
		return nil, finalBody, nil
	}
	if !bytes.Equal(e.HeaderJSON, headerJSON) || chunkIndex <= e.lastIndex {
		delete(m.entries, k)
		m.mu.Unlock()
		return nil, nil, midici.ErrChunksOutOfSequence
	}
	e.accumulated.Write(finalBody)
	full := append([]byte(nil), e.accumulated.Bytes()...)
	header := e.HeaderJSON
	delete(m.entries, k)
	m.mu.Unlock()
	return header, full, nil
}

// CleanupExpiredChunks drops every entry whose last activity is older than
// idle, returning the keys evicted (as sourceMuid/requestId pairs) so the
// caller can log/NAK/time out the corresponding pending request.
func (m *Manager) CleanupExpiredChunks(now time.Time, idle time.Duration) []struct {
	Source midici.MUID
	ReqID  byte
} {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []struct {
		Source midici.MUID
		ReqID  byte
	}
	for k, e := range m.entries {
		if now.Sub(e.Timestamp) > idle {
			delete(m.entries, k)
			evicted = append(evicted, struct {
				Source midici.MUID
				ReqID  byte
			}{k.source, k.reqID})
		}
	}
	return evicted
}

// Len reports the number of in-flight chunk reassemblies, for metrics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
