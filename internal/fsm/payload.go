package fsm

// Payload is data carried with a transition. Concrete machines define their
// own variants; PayloadKind names the variant in logs and traces.
type Payload interface {
	PayloadKind() string
}

// NoPayload is the variant carried by transitions without data.
type NoPayload struct{}

// PayloadKind implements Payload.
func (NoPayload) PayloadKind() string { return "none" }

func orNoPayload(p Payload) Payload {
	if p == nil {
		return NoPayload{}
	}
	return p
}
