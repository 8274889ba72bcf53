package midici

// Default MTU and overhead used when a peer's declared rxMaxSysex is
// unknown (spec.md §4.1).
const (
	DefaultMTU      = 2048
	MinOverhead     = 256
	DefaultOverhead = 256
)

// ChunkSize returns the usable payload size per SysEx given a peer's
// declared MTU and the reserved overhead for framing/header bytes. An
// overhead below MinOverhead is raised to MinOverhead first; it panics if
// the resulting overhead >= mtu, which would make no chunk size positive.
func ChunkSize(mtu, overhead int) int {
	if overhead < MinOverhead {
		overhead = MinOverhead
	}
	size := mtu - overhead
	if size <= 0 {
		panic("midici: MTU too small for overhead")
	}
	return size
}

// SplitPropertyChunks splits body into N = ceil(len(body)/chunkSize)
// PropertyExchange messages sharing subID2, requestId and headerJSON,
// differing only in chunkIndex/chunkBody (spec.md §4.1). An empty body
// still produces exactly one chunk with totalChunks=1, chunkIndex=1.
func SplitPropertyChunks(hdr Header, subID2 byte, requestId byte, headerJSON []byte, body []byte, chunkSize int) []PropertyExchange {
	if chunkSize <= 0 {
		chunkSize = DefaultMTU - DefaultOverhead
	}
	total := (len(body) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	msgs := make([]PropertyExchange, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(body) {
			end = len(body)
		}
		msgs = append(msgs, PropertyExchange{
			Hdr:         hdr,
			SubID2Value: subID2,
			RequestId:   requestId,
			HeaderJSON:  headerJSON,
			TotalChunks: uint16(total),
			ChunkIndex:  uint16(i + 1),
			ChunkBody:   body[start:end],
		})
	}
	return msgs
}

// ReassemblePropertyChunks concatenates the chunk bodies of msgs in the
// order given (the chunk manager, C6, is responsible for ordering/eviction;
// this helper assumes msgs is already in chunkIndex order for one
// (sourceMuid, requestId) key).
func ReassemblePropertyChunks(msgs []PropertyExchange) []byte {
	total := 0
	for _, m := range msgs {
		total += len(m.ChunkBody)
	}
	out := make([]byte, 0, total)
	for _, m := range msgs {
		out = append(out, m.ChunkBody...)
	}
	return out
}
