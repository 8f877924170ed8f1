package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsDecodeFromWire(t *testing.T) {
	ops := []Op{
		Merge(1, 2, cell(0, 0), cell(0, 1), cell(0, 0), 4),
		Spawn(3, cell(0, 3), 2),
	}
	data, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"merge"`)

	var decoded []Op
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ops, decoded)
	assert.Equal(t, 4, MergedScore(decoded))

	var k IssueKind
	require.NoError(t, k.UnmarshalText([]byte("double_claim")))
	assert.Equal(t, IssueDoubleClaim, k)
	assert.Error(t, k.UnmarshalText([]byte("nope")))
}
