package postgres

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCodec_Threshold(t *testing.T) {
	codec, err := newPayloadCodec(64)
	require.NoError(t, err)

	small := json.RawMessage(`{"reference":"PUR-2026-00001"}`)
	plain, compressed, algo := codec.encode(small)
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.Equal(t, []byte(small), plain)

	large := json.RawMessage(`{"lines":"` + string(bytes.Repeat([]byte("19kg filled "), 40)) + `"}`)
	plain, compressed, algo = codec.encode(large)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, plain)
	assert.Less(t, len(compressed), len(large))

	decoded, err := codec.decode(plain, compressed, algo)
	require.NoError(t, err)
	assert.JSONEq(t, string(large), string(decoded))
}

func TestPayloadCodec_ZeroThresholdCompressesEverything(t *testing.T) {
	codec, err := newPayloadCodec(0)
	require.NoError(t, err)

	_, compressed, algo := codec.encode(json.RawMessage(`{}`))
	assert.Equal(t, CompressionZstd, algo)
	assert.NotEmpty(t, compressed)
}

func TestPayloadCodec_Decode(t *testing.T) {
	codec, err := newPayloadCodec(10)
	require.NoError(t, err)

	got, err := codec.decode([]byte(`{"a":1}`), nil, CompressionNone)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	_, err = codec.decode(nil, []byte("not zstd"), CompressionZstd)
	assert.Error(t, err)

	_, err = codec.decode(nil, nil, "lz4")
	assert.Error(t, err)
}
