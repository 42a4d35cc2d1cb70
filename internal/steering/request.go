package steering

// Request is the payload of set_value: an unsigned magnitude and a sign flag.
type Request struct {
	Magnitude float64 `json:"magnitude"`
	Sign      bool    `json:"sign"` // true for negative values
}

// PayloadKind implements fsm.Payload.
func (Request) PayloadKind() string { return "steering.request" }

// Value returns the signed value the request encodes.
func (r Request) Value() float64 {
	if r.Sign {
		return -r.Magnitude
	}
	return r.Magnitude
}
