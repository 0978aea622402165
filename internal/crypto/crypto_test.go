package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	payload := []byte(`{"amount":"100.00","status":"approved"}`)
	sig, err := Sign(payload, priv)
	require.NoError(t, err)

	ok, err := Verify(payload, sig, &priv.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyFailsOnSingleByteMutation(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	payload := []byte(`{"amount":"100.00","status":"approved"}`)
	sig, err := Sign(payload, priv)
	require.NoError(t, err)

	for _, i := range []int{0, len(payload) / 2, len(payload) - 1} {
		mutated := append([]byte(nil), payload...)
		mutated[i] ^= 0x01
		ok, err := Verify(mutated, sig, &priv.PublicKey)
		require.NoError(t, err)
		assert.False(t, ok, "mutated byte %d must not verify", i)
	}
}

func TestVerifyMalformedSignatureReturnsFalse(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	ok, err := Verify([]byte("payload"), []byte("not a signature"), &priv.PublicKey)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify([]byte("payload"), nil, &priv.PublicKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyNilKeyIsCryptoFault(t *testing.T) {
	_, err := Verify([]byte("payload"), []byte("sig"), nil)
	assert.ErrorIs(t, err, ErrCryptoFault)
}

func TestParsePublicKeyFaults(t *testing.T) {
	_, err := ParsePublicKey([]byte("garbage"))
	assert.ErrorIs(t, err, ErrCryptoFault)

	_, err = ParsePublicKey([]byte("-----BEGIN PUBLIC KEY-----\naGVsbG8=\n-----END PUBLIC KEY-----\n"))
	assert.ErrorIs(t, err, ErrCryptoFault)
}

func TestKeyPEMRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	pubPEM, err := EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)
	privPEM, err := EncodePrivateKey(priv)
	require.NoError(t, err)

	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	back, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)

	sig, err := Sign([]byte("payload"), back)
	require.NoError(t, err)
	ok, err := Verify([]byte("payload"), sig, pub)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	plaintext := []byte(`{"po_box":"internal pricing notes"}`)
	sealed, err := Encrypt(plaintext, &priv.PublicKey)
	require.NoError(t, err)
	require.NotEmpty(t, sealed)

	opened, err := Decrypt(sealed, priv)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEnvelopeTamperIsHardFailure(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	sealed, err := Encrypt([]byte("secret"), &priv.PublicKey)
	require.NoError(t, err)

	// Flip a character inside the base64 body.
	tampered := []byte(sealed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	_, err = Decrypt(string(tampered), priv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecrypt) || errors.Is(err, ErrCryptoFault))
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	alice, err := GenerateKeyPair(2048)
	require.NoError(t, err)
	mallory, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	sealed, err := Encrypt([]byte("secret"), &alice.PublicKey)
	require.NoError(t, err)

	_, err = Decrypt(sealed, mallory)
	assert.ErrorIs(t, err, ErrDecrypt)
}
