package ops

import (
	"fmt"
	"sync"

	"github.com/ezrec/nesbridge/bridge"
)

// Joypad button bits.
const (
	JOY_A      = 0x01
	JOY_B      = 0x02
	JOY_SELECT = 0x04
	JOY_START  = 0x08
	JOY_UP     = 0x10
	JOY_DOWN   = 0x20
	JOY_LEFT   = 0x40
	JOY_RIGHT  = 0x80
)

// JOYPAD_PORTS is the number of controller ports.
const JOYPAD_PORTS = 4

var _joy_names = []string{"A", "B", "SELECT", "START", "UP", "DOWN", "LEFT", "RIGHT"}

// ButtonBit returns the mask bit for a button name.
func ButtonBit(name string) (bit uint8, ok bool) {
	for n, candidate := range _joy_names {
		if candidate == name {
			return 1 << n, true
		}
	}
	return
}

// ButtonNames expands a button mask into the names of its set bits, low
// bit first.
func ButtonNames(mask uint8) (names []string) {
	for n, name := range _joy_names {
		if mask&(1<<n) != 0 {
			names = append(names, name)
		}
	}
	return
}

// InputPort is the engine surface for joypad overlay control.
type InputPort interface {
	Joypad(port int) uint8
	SetJoypad(port int, buttons uint8, force bool)
	ReleaseJoypad(port int, buttons uint8)
	ClearJoypad(port int)
	FrameCount() int
}

func inputOf(env *bridge.Env) (input InputPort, err error) {
	input, ok := env.Engine().(InputPort)
	if !ok {
		err = ErrNotSupported
	}
	return
}

type pendingRelease struct {
	port    int
	buttons uint8
	frame   int
}

// ReleasePlan tracks buttons scheduled to release at a future frame.
// Process runs on the engine tick with the lock held, like command
// execution; Add may be called from a command's Execute.
type ReleasePlan struct {
	mu      sync.Mutex
	pending []pendingRelease
}

// Add schedules buttons on a port to release at the given frame.
func (plan *ReleasePlan) Add(port int, buttons uint8, frame int) {
	plan.mu.Lock()
	defer plan.mu.Unlock()

	plan.pending = append(plan.pending, pendingRelease{
		port:    port,
		buttons: buttons,
		frame:   frame,
	})
}

// Process releases every entry due at or before the current frame.
func (plan *ReleasePlan) Process(input InputPort) {
	plan.mu.Lock()
	defer plan.mu.Unlock()

	frame := input.FrameCount()
	kept := plan.pending[:0]
	for _, rel := range plan.pending {
		if rel.frame <= frame {
			input.ReleaseJoypad(rel.port, rel.buttons)
		} else {
			kept = append(kept, rel)
		}
	}
	plan.pending = kept
}

// Pending returns the number of scheduled releases.
func (plan *ReleasePlan) Pending() int {
	plan.mu.Lock()
	defer plan.mu.Unlock()

	return len(plan.pending)
}

// Clear drops every scheduled release without applying it.
func (plan *ReleasePlan) Clear() {
	plan.mu.Lock()
	defer plan.mu.Unlock()

	plan.pending = nil
}

// JoypadResult reports an applied joypad overlay.
type JoypadResult struct {
	Port         int
	Buttons      uint8
	ReleaseFrame int // 0 when held until cleared
}

// JoypadCommand forces buttons on a controller port. When Frames is
// positive the buttons release automatically that many frames later via
// the command's ReleasePlan.
type JoypadCommand struct {
	Port    int
	Buttons uint8
	Frames  int
	Plan    *ReleasePlan

	slot *bridge.Slot[JoypadResult]
}

var _ bridge.Command = (*JoypadCommand)(nil)

// NewJoypadCommand creates a joypad command; plan may be nil when no timed
// release is wanted.
func NewJoypadCommand(port int, buttons uint8, frames int, plan *ReleasePlan) (cmd *JoypadCommand) {
	cmd = &JoypadCommand{
		Port:    port,
		Buttons: buttons,
		Frames:  frames,
		Plan:    plan,
		slot:    bridge.NewSlot[JoypadResult](),
	}

	return
}

// Result returns the reader half of the command's result slot.
func (cmd *JoypadCommand) Result() *bridge.Slot[JoypadResult] {
	return cmd.slot
}

func (cmd *JoypadCommand) Name() string {
	return "input.joypad"
}

func (cmd *JoypadCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *JoypadCommand) Execute(env *bridge.Env) error {
	if cmd.Port < 0 || cmd.Port >= JOYPAD_PORTS {
		return fmt.Errorf("%w: port %d out of range", bridge.ErrInvalidArgument, cmd.Port)
	}
	if cmd.Frames < 0 {
		return fmt.Errorf("%w: negative hold duration", bridge.ErrInvalidArgument)
	}

	input, err := inputOf(env)
	if err != nil {
		return err
	}
	if !env.Loaded() {
		return bridge.ErrEngineUnavailable
	}

	input.SetJoypad(cmd.Port, cmd.Buttons, true)

	res := JoypadResult{Port: cmd.Port, Buttons: cmd.Buttons}
	if cmd.Frames > 0 && cmd.Plan != nil {
		res.ReleaseFrame = input.FrameCount() + cmd.Frames
		cmd.Plan.Add(cmd.Port, cmd.Buttons, res.ReleaseFrame)
	}

	cmd.slot.Resolve(res)
	return nil
}

// ClearJoypadCommand drops the overlay for one port, or every port when
// Port is negative.
type ClearJoypadCommand struct {
	Port int

	slot *bridge.Slot[struct{}]
}

var _ bridge.Command = (*ClearJoypadCommand)(nil)

// NewClearJoypadCommand creates a clear command; a negative port clears
// all ports.
func NewClearJoypadCommand(port int) *ClearJoypadCommand {
	return &ClearJoypadCommand{
		Port: port,
		slot: bridge.NewSlot[struct{}](),
	}
}

// Result returns the reader half of the command's result slot.
func (cmd *ClearJoypadCommand) Result() *bridge.Slot[struct{}] {
	return cmd.slot
}

func (cmd *ClearJoypadCommand) Name() string {
	return "input.clear"
}

func (cmd *ClearJoypadCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *ClearJoypadCommand) Execute(env *bridge.Env) error {
	if cmd.Port >= JOYPAD_PORTS {
		return fmt.Errorf("%w: port %d out of range", bridge.ErrInvalidArgument, cmd.Port)
	}

	input, err := inputOf(env)
	if err != nil {
		return err
	}

	if cmd.Port < 0 {
		for port := range JOYPAD_PORTS {
			input.ClearJoypad(port)
		}
	} else {
		input.ClearJoypad(cmd.Port)
	}

	cmd.slot.Resolve(struct{}{})
	return nil
}

// PortStatus is the effective pad state of one port.
type PortStatus struct {
	Port    int
	Buttons uint8
}

// InputStatus reports the pad state of every port.
type InputStatus struct {
	Ports []PortStatus
}

// InputStatusCommand reports the effective joypad state across all ports.
// Valid with or without a rom loaded.
type InputStatusCommand struct {
	slot *bridge.Slot[InputStatus]
}

var _ bridge.Command = (*InputStatusCommand)(nil)

// NewInputStatusCommand creates an input status command.
func NewInputStatusCommand() *InputStatusCommand {
	return &InputStatusCommand{slot: bridge.NewSlot[InputStatus]()}
}

// Result returns the reader half of the command's result slot.
func (cmd *InputStatusCommand) Result() *bridge.Slot[InputStatus] {
	return cmd.slot
}

func (cmd *InputStatusCommand) Name() string {
	return "input.status"
}

func (cmd *InputStatusCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *InputStatusCommand) Execute(env *bridge.Env) error {
	input, err := inputOf(env)
	if err != nil {
		return err
	}

	status := InputStatus{Ports: make([]PortStatus, 0, JOYPAD_PORTS)}
	for port := range JOYPAD_PORTS {
		status.Ports = append(status.Ports, PortStatus{
			Port:    port,
			Buttons: input.Joypad(port),
		})
	}

	cmd.slot.Resolve(status)
	return nil
}
