package payload

import (
	"encoding/json"
	"fmt"
	"strings"
)

// unescapeToken decodes one RFC 6901 JSON pointer reference token: "~1"
// becomes "/", then "~0" becomes "~" (spec.md §4.7 step 2).
func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}

func splitPointer(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	ptr = strings.TrimPrefix(ptr, "/")
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		parts[i] = unescapeToken(p)
	}
	return parts
}

// setAtPointer returns a new map with value set at the path described by
// segs, copying only the objects along the touched path (copy-on-write, so
// two calls over disjoint paths never observe each other's mutation —
// spec.md §4.7/P4). If any intermediate segment is absent or not itself an
// object, node is returned unchanged, per spec.md step 2 ("leave the
// document unchanged for this entry").
func setAtPointer(node map[string]interface{}, segs []string, value interface{}) map[string]interface{} {
	if len(segs) == 0 {
		return node
	}
	key := segs[0]
	if len(segs) == 1 {
		cp := make(map[string]interface{}, len(node)+1)
		for k, v := range node {
			cp[k] = v
		}
		cp[key] = value
		return cp
	}
	child, ok := node[key]
	if !ok {
		return node
	}
	childMap, ok := child.(map[string]interface{})
	if !ok {
		return node
	}
	newChild := setAtPointer(childMap, segs[1:], value)
	cp := make(map[string]interface{}, len(node))
	for k, v := range node {
		cp[k] = v
	}
	cp[key] = newChild
	return cp
}

// ApplyPartialUpdate mutates a functional copy of targetJSON according to
// specJSON, an object whose keys are RFC 6901 JSON pointers and whose
// values replace the node at that pointer (spec.md §4.7). targetJSON must
// decode to a JSON object; specJSON must too. An empty spec is the
// identity transform (P4); two disjoint-pointer updates commute (P4)
// because each touches only its own path. Failures on individual pointers
// (missing intermediate keys) do not abort the batch — they are silently
// skipped for that one entry, per spec.md step 2.
func ApplyPartialUpdate(targetJSON, specJSON []byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(targetJSON, &doc); err != nil {
		return nil, fmt.Errorf("payload: partial update target is not a JSON object: %w", err)
	}
	var spec map[string]json.RawMessage
	if err := json.Unmarshal(specJSON, &spec); err != nil {
		return nil, fmt.Errorf("payload: partial update spec is not a JSON object: %w", err)
	}
	for pointer, raw := range spec {
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			continue // malformed individual entry; skip, do not abort the batch
		}
		doc = setAtPointer(doc, splitPointer(pointer), value)
	}
	return json.Marshal(doc)
}
