package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyPartialUpdateSetsTopLevelKey(t *testing.T) {
	target := []byte(`{"name":"old","nested":{"a":1}}`)
	spec := []byte(`{"/name":"new"}`)

	out, err := ApplyPartialUpdate(target, spec)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Equal(t, "new", doc["name"])
	require.Equal(t, map[string]interface{}{"a": float64(1)}, doc["nested"])
}

func TestApplyPartialUpdateNestedPointer(t *testing.T) {
	target := []byte(`{"nested":{"a":1,"b":2}}`)
	spec := []byte(`{"/nested/a":99}`)

	out, err := ApplyPartialUpdate(target, spec)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	nested := doc["nested"].(map[string]interface{})
	require.Equal(t, float64(99), nested["a"])
	require.Equal(t, float64(2), nested["b"])
}

func TestApplyPartialUpdateEmptySpecIsIdentity(t *testing.T) {
	target := []byte(`{"a":1,"b":{"c":2}}`)
	out, err := ApplyPartialUpdate(target, []byte(`{}`))
	require.NoError(t, err)

	var original, got map[string]interface{}
	require.NoError(t, json.Unmarshal(target, &original))
	require.NoError(t, json.Unmarshal(out, &got))
	require.Equal(t, original, got)
}

func TestApplyPartialUpdateMissingIntermediateIsSkipped(t *testing.T) {
	target := []byte(`{"a":1}`)
	spec := []byte(`{"/missing/child":5}`)

	out, err := ApplyPartialUpdate(target, spec)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Equal(t, float64(1), doc["a"])
	_, present := doc["missing"]
	require.False(t, present)
}

func TestApplyPartialUpdateDisjointPointersCommute(t *testing.T) {
	target := []byte(`{"a":{"x":1},"b":{"y":2}}`)
	updA := []byte(`{"/a/x":10}`)
	updB := []byte(`{"/b/y":20}`)

	mid1, err := ApplyPartialUpdate(target, updA)
	require.NoError(t, err)
	out1, err := ApplyPartialUpdate(mid1, updB)
	require.NoError(t, err)
	mid2, err := ApplyPartialUpdate(target, updB)
	require.NoError(t, err)
	out2, err := ApplyPartialUpdate(mid2, updA)
	require.NoError(t, err)

	var doc1, doc2 map[string]interface{}
	require.NoError(t, json.Unmarshal(out1, &doc1))
	require.NoError(t, json.Unmarshal(out2, &doc2))
	require.Equal(t, doc1, doc2)
}

func TestUnescapeToken(t *testing.T) {
	require.Equal(t, "a/b", unescapeToken("a~1b"))
	require.Equal(t, "a~b", unescapeToken("a~0b"))
}
