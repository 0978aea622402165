package workflow

import "time"

// TransitionRequest is the signature payload accompanying a transition call.
// It is a tagged variant: one constructor per transition kind, each carrying
// exactly the fields that kind needs, replacing the free-form map the
// endpoints would otherwise accept.
type TransitionRequest struct {
	kind Kind

	// Signature is the externally produced RSA-PSS signature over the
	// canonical post-transition payload.
	Signature []byte
	// Digest is the signer's claimed sha256 hex digest of the canonical
	// payload, cross-checked against the server-side derivation.
	Digest string
	// ProducedAt is the signer-supplied signing time. It is recorded but
	// never trusted for ordering; insertion order is the chronology.
	ProducedAt time.Time
}

// Kind returns the transition the request was built for.
func (r TransitionRequest) Kind() Kind { return r.kind }

// NewSignRequest builds a co-attestation request.
func NewSignRequest(signature []byte, digest string, producedAt time.Time) TransitionRequest {
	return TransitionRequest{kind: KindSign, Signature: signature, Digest: digest, ProducedAt: producedAt}
}

// NewApproveRequest builds an approval request.
func NewApproveRequest(signature []byte, digest string, producedAt time.Time) TransitionRequest {
	return TransitionRequest{kind: KindApprove, Signature: signature, Digest: digest, ProducedAt: producedAt}
}

// NewRejectRequest builds a rejection request.
func NewRejectRequest(signature []byte, digest string, producedAt time.Time) TransitionRequest {
	return TransitionRequest{kind: KindReject, Signature: signature, Digest: digest, ProducedAt: producedAt}
}

// NewProcessRequest builds a processing request.
func NewProcessRequest(signature []byte, digest string, producedAt time.Time) TransitionRequest {
	return TransitionRequest{kind: KindProcess, Signature: signature, Digest: digest, ProducedAt: producedAt}
}
