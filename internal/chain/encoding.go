package chain

import "encoding/base64"

// EncodeSignature renders raw signature bytes for storage. Signature blobs
// are stored base64-encoded, matching what external signers submit.
func EncodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

func decodeSignature(s string) []byte {
	sig, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Verification of undecodable bytes fails closed.
		return nil
	}
	return sig
}
