package cdc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterMessageJSONRoundTrip(t *testing.T) {
	msg := NewRegisterMessage("shard-1", "ns1", 42)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.Contains(t, string(data), `"lastSequence":"42"`, "bigint fields must marshal as quoted strings")

	var decoded RegisterMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, msg, decoded)
}

func TestCDCMessageJSONRoundTrip(t *testing.T) {
	msg := NewCDCMessage("shard-1", []Event{sampleEvent(0), sampleEvent(1)}, 2)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded CDCMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, msg, decoded)
}

func TestAckMessageJSONRoundTrip(t *testing.T) {
	msg := NewAckMessage("shard-1", 10, 5)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded AckMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, msg, decoded)
}

func TestBadWireIntRejectsBareNumber(t *testing.T) {
	var decoded RegisterMessage
	err := json.Unmarshal([]byte(`{"type":"register","shardId":"s","namespace":"n","lastSequence":42}`), &decoded)
	require.Error(t, err, "a bare JSON number, not a quoted string, must fail to unmarshal")
}
