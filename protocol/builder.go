package protocol

// EnvelopeBuilder assembles envelopes with generated ids and timestamps.
type EnvelopeBuilder struct {
	envelope *Envelope
}

func NewEnvelope(from, to, method string, params any, messageType MessageType) *EnvelopeBuilder {
	return &EnvelopeBuilder{
		envelope: &Envelope{
			Version:     Version,
			Method:      method,
			Params:      params,
			ID:          generateID(),
			From:        from,
			To:          to,
			Timestamp:   nowMillis(),
			MessageType: messageType,
			Priority:    PriorityNormal,
		},
	}
}

func NewRequest(from, to, method string, params any) *EnvelopeBuilder {
	return NewEnvelope(from, to, method, params, MessageTypeRequest)
}

func NewNotification(from, to, method string, params any) *EnvelopeBuilder {
	return NewEnvelope(from, to, method, params, MessageTypeNotification)
}

func (eb *EnvelopeBuilder) ID(id string) *EnvelopeBuilder {
	eb.envelope.ID = id
	return eb
}

func (eb *EnvelopeBuilder) Priority(priority Priority) *EnvelopeBuilder {
	eb.envelope.Priority = priority
	return eb
}

func (eb *EnvelopeBuilder) Timeout(timeoutMs int64) *EnvelopeBuilder {
	eb.context().TimeoutMs = timeoutMs
	return eb
}

func (eb *EnvelopeBuilder) Retry(policy *RetryPolicy) *EnvelopeBuilder {
	eb.context().RetryPolicy = policy
	return eb
}

func (eb *EnvelopeBuilder) MaxCost(maxCost float64) *EnvelopeBuilder {
	eb.context().MaxCost = maxCost
	return eb
}

func (eb *EnvelopeBuilder) Signature(signature string) *EnvelopeBuilder {
	eb.envelope.Signature = signature
	return eb
}

func (eb *EnvelopeBuilder) Build() *Envelope {
	return eb.envelope
}

func (eb *EnvelopeBuilder) context() *CallContext {
	if eb.envelope.Context == nil {
		eb.envelope.Context = &CallContext{}
	}
	return eb.envelope.Context
}

// NewResponse builds the success reply for a request envelope.
func NewResponse(env *Envelope, source string, result any) *Response {
	return &Response{
		Version:     Version,
		Result:      result,
		ID:          env.ID,
		From:        source,
		To:          env.From,
		Timestamp:   nowMillis(),
		MessageType: MessageTypeResponse,
	}
}

// NewErrorResponse builds the failure reply for a request envelope.
func NewErrorResponse(env *Envelope, source string, protoErr *Error) *Response {
	return &Response{
		Version:     Version,
		Error:       protoErr,
		ID:          env.ID,
		From:        source,
		To:          env.From,
		Timestamp:   nowMillis(),
		MessageType: MessageTypeResponse,
	}
}
