package payload_test

import (
	"testing"

	"github.com/scrypster/cuemap/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key32() []byte {
	k := make([]byte, 32)
	copy(k, []byte("a-deterministic-test-key-value!"))
	return k
}

func TestCreateAccess_CompressedOnly(t *testing.T) {
	encoded, err := payload.Create("hello cuemap", nil)
	require.NoError(t, err)

	got, err := payload.Access(encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello cuemap", got)
}

func TestCreateAccess_Encrypted(t *testing.T) {
	key := key32()
	encoded, err := payload.Create("secret content", key)
	require.NoError(t, err)

	got, err := payload.Access(encoded, key)
	require.NoError(t, err)
	assert.Equal(t, "secret content", got)
}

func TestAccess_EncryptedWithoutKey_MissingKey(t *testing.T) {
	key := key32()
	encoded, err := payload.Create("secret content", key)
	require.NoError(t, err)

	_, err = payload.Access(encoded, nil)
	assert.ErrorIs(t, err, payload.ErrMissingKey)
}

func TestAccess_CompressedWithKeyStillSucceeds(t *testing.T) {
	// Migration path: a 'C'-tagged payload must still open even once a
	// key has been configured.
	encoded, err := payload.Create("legacy content", nil)
	require.NoError(t, err)

	got, err := payload.Access(encoded, key32())
	require.NoError(t, err)
	assert.Equal(t, "legacy content", got)
}

func TestAccess_TamperedCiphertext_AuthenticationFailed(t *testing.T) {
	key := key32()
	encoded, err := payload.Create("secret content", key)
	require.NoError(t, err)

	tampered := append([]byte(nil), encoded...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = payload.Access(tampered, key)
	assert.ErrorIs(t, err, payload.ErrAuthenticationFailed)
}

func TestAccess_UnknownTag_CorruptPayload(t *testing.T) {
	_, err := payload.Access([]byte("Xgarbage"), nil)
	assert.ErrorIs(t, err, payload.ErrCorruptPayload)
}

func TestAccess_EmptyPayload_CorruptPayload(t *testing.T) {
	_, err := payload.Access(nil, nil)
	assert.ErrorIs(t, err, payload.ErrCorruptPayload)
}
