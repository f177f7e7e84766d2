package protocol

// ValidateEnvelope performs structural checks on an inbound envelope before
// it consumes any scheduler capacity. Returns nil when the envelope is well
// formed, otherwise a non-retryable protocol_error naming the first failed
// check.
func ValidateEnvelope(env *Envelope) *Error {
	if env == nil {
		return invalid("envelope is missing")
	}
	if env.Version != Version {
		return invalid("invalid protocol version: expected " + Version)
	}
	if env.Method == "" {
		return invalid("method is required")
	}
	if env.From == "" || env.To == "" {
		return invalid("from and to agent ids are required")
	}
	if env.Timestamp == 0 {
		return invalid("timestamp is required")
	}
	if env.MessageType == "" {
		return invalid("messageType is required")
	}
	return nil
}

func invalid(message string) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Message: message,
		Kind:    KindProtocolError,
	}
}
