// Package crypto wraps the asymmetric primitives used by the workflow engine:
// RSA-PSS signatures over canonical payloads and a hybrid envelope for
// confidential order details. Signing is exposed only for the seed/test
// harness; production signatures are produced off-engine by key holders.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrCryptoFault marks structurally invalid key material: the input could not
// be evaluated at all, as opposed to a signature that evaluated to invalid.
// It indicates a configuration problem on the server side, not a bad request.
var ErrCryptoFault = errors.New("crypto fault")

var pssOpts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// Verify reports whether sig is a valid RSA-PSS/SHA-256 signature by pub over
// payload. Malformed signatures from untrusted callers yield false, never an
// error; a nil public key is a CryptoFault.
func Verify(payload, sig []byte, pub *rsa.PublicKey) (bool, error) {
	if pub == nil {
		return false, fmt.Errorf("%w: nil public key", ErrCryptoFault)
	}
	if len(sig) == 0 {
		return false, nil
	}
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, pssOpts); err != nil {
		return false, nil
	}
	return true, nil
}

// Sign produces an RSA-PSS/SHA-256 signature over payload. It never logs or
// persists the private key.
func Sign(payload []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrCryptoFault)
	}
	digest := sha256.Sum256(payload)
	return rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], pssOpts)
}

// ParsePublicKey decodes a PEM-encoded PKIX RSA public key. Any parse failure
// is a CryptoFault: the registry handed out key material the engine cannot
// evaluate.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in public key", ErrCryptoFault)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", ErrCryptoFault, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported public key type %T", ErrCryptoFault, parsed)
	}
	return pub, nil
}

// ParsePrivateKey decodes a PEM-encoded PKCS#8 RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in private key", ErrCryptoFault)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrCryptoFault, err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported private key type %T", ErrCryptoFault, parsed)
	}
	return priv, nil
}

// EncodePublicKey renders a public key as PKIX PEM.
func EncodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// EncodePrivateKey renders a private key as PKCS#8 PEM.
func EncodePrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// GenerateKeyPair creates a fresh RSA key pair. Used by the seeder, the
// keygen CLI command and tests; never called on a production transition path.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		bits = 2048
	}
	return rsa.GenerateKey(rand.Reader, bits)
}
