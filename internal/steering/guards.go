package steering

// Guards answers the preconditions the state handlers check. Implementations
// read vehicle signals (doors, seatbelt, brake, gear, torque sensors); they
// are called from state handlers and must not block.
type Guards interface {
	// ActivationRequirementsOK gates Clearance and Activation.
	ActivationRequirementsOK() bool

	// WorkingRequirementsOK gates dispatching requests in Working.
	WorkingRequirementsOK() bool

	// HasStopConditions reports a condition that forbids steering.
	HasStopConditions() bool
}

// StaticGuards returns fixed answers.
type StaticGuards struct {
	Activation     bool
	Working        bool
	StopConditions bool
}

// AllowAll is the guard set with every requirement met and no stop condition.
var AllowAll = StaticGuards{Activation: true, Working: true}

func (g StaticGuards) ActivationRequirementsOK() bool { return g.Activation }
func (g StaticGuards) WorkingRequirementsOK() bool    { return g.Working }
func (g StaticGuards) HasStopConditions() bool        { return g.StopConditions }

// guardSet boxes a Guards for atomic.Pointer.
type guardSet struct {
	Guards
}
