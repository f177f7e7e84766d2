package security

import "github.com/clduab11/gemini-flow-sub001/protocol"

// InvalidSignatureMarker is the literal signature value the placeholder
// verifier rejects. Useful for exercising the authentication path in tests.
const InvalidSignatureMarker = "invalid"

// Verifier checks the signature token carried by an envelope.
type Verifier interface {
	Verify(env *protocol.Envelope) bool
}

// MarkerVerifier is a placeholder that rejects only the literal invalid
// marker and accepts everything else. Deployments must install a real
// cryptographic verifier via WithVerifier.
type MarkerVerifier struct{}

func (MarkerVerifier) Verify(env *protocol.Envelope) bool {
	return env.Signature != InvalidSignatureMarker
}
