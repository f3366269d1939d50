package sim

import "encoding/json"

// Component is a mutable piece of entity state that can change after
// placement. Mutation goes through explicit setters so the engine can emit a
// change notification; there is no transparent field interception.
type Component interface {
	Name() string

	// State returns the component's serializable state.
	State() (json.RawMessage, error)

	// SetState copies fields from a serialized state into this instance.
	// It reports whether anything actually changed; assigning the current
	// value is a no-op and fires no notification.
	SetState(raw json.RawMessage) (changed bool, err error)
}

// SignalValueName is the component name of SignalValueComponent.
const SignalValueName = "SignalValue"

// SignalValueComponent holds the emitted value of a constant-signal style
// building. The value only changes through SetValue.
type SignalValueComponent struct {
	value    string
	onChange func()
}

// NewSignalValueComponent creates the component. onChange fires after every
// effective value change; nil is allowed.
func NewSignalValueComponent(onChange func()) *SignalValueComponent {
	return &SignalValueComponent{onChange: onChange}
}

func (c *SignalValueComponent) Name() string { return SignalValueName }

// Value returns the current signal value.
func (c *SignalValueComponent) Value() string { return c.value }

// SetValue assigns the signal value and emits the change notification.
// Assigning the current value is a no-op.
func (c *SignalValueComponent) SetValue(v string) bool {
	if v == c.value {
		return false
	}
	c.value = v
	if c.onChange != nil {
		c.onChange()
	}
	return true
}

// SeedValue assigns the value without firing the change notification.
// For deserialization paths only, where the state is announced elsewhere.
func (c *SignalValueComponent) SeedValue(v string) {
	c.value = v
}

type signalValueState struct {
	Value string `json:"value"`
}

func (c *SignalValueComponent) State() (json.RawMessage, error) {
	return json.Marshal(signalValueState{Value: c.value})
}

func (c *SignalValueComponent) SetState(raw json.RawMessage) (bool, error) {
	var st signalValueState
	if err := json.Unmarshal(raw, &st); err != nil {
		return false, err
	}
	return c.SetValue(st.Value), nil
}
