package ops

import (
	"github.com/ezrec/nesbridge/bridge"
)

// Controller is the engine surface the emulation-control commands require.
type Controller interface {
	Paused() bool
	SetPaused(paused bool)
	FrameCount() int
	FPS() float64
}

func controllerOf(env *bridge.Env) (ctl Controller, err error) {
	ctl, ok := env.Engine().(Controller)
	if !ok {
		err = ErrNotSupported
	}
	return
}

// PauseCommand pauses emulation. The result reports whether the state
// actually changed (emulation was running).
type PauseCommand struct {
	slot *bridge.Slot[bool]
}

var _ bridge.Command = (*PauseCommand)(nil)

// NewPauseCommand creates a pause command.
func NewPauseCommand() *PauseCommand {
	return &PauseCommand{slot: bridge.NewSlot[bool]()}
}

// Result returns the reader half of the command's result slot.
func (cmd *PauseCommand) Result() *bridge.Slot[bool] {
	return cmd.slot
}

func (cmd *PauseCommand) Name() string {
	return "emulation.pause"
}

func (cmd *PauseCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *PauseCommand) Execute(env *bridge.Env) error {
	ctl, err := controllerOf(env)
	if err != nil {
		return err
	}
	if !env.Loaded() {
		return bridge.ErrEngineUnavailable
	}

	wasPaused := ctl.Paused()
	ctl.SetPaused(true)

	cmd.slot.Resolve(!wasPaused)
	return nil
}

// ResumeCommand resumes emulation. The result reports whether the state
// actually changed (emulation was paused).
type ResumeCommand struct {
	slot *bridge.Slot[bool]
}

var _ bridge.Command = (*ResumeCommand)(nil)

// NewResumeCommand creates a resume command.
func NewResumeCommand() *ResumeCommand {
	return &ResumeCommand{slot: bridge.NewSlot[bool]()}
}

// Result returns the reader half of the command's result slot.
func (cmd *ResumeCommand) Result() *bridge.Slot[bool] {
	return cmd.slot
}

func (cmd *ResumeCommand) Name() string {
	return "emulation.resume"
}

func (cmd *ResumeCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *ResumeCommand) Execute(env *bridge.Env) error {
	ctl, err := controllerOf(env)
	if err != nil {
		return err
	}
	if !env.Loaded() {
		return bridge.ErrEngineUnavailable
	}

	wasPaused := ctl.Paused()
	ctl.SetPaused(false)

	cmd.slot.Resolve(wasPaused)
	return nil
}

// Status describes the emulation state at a point in time.
type Status struct {
	Running    bool
	Paused     bool
	Loaded     bool
	FPS        float64
	FrameCount int
}

// StatusCommand reports emulation status. Valid with or without a rom
// loaded.
type StatusCommand struct {
	slot *bridge.Slot[Status]
}

var _ bridge.Command = (*StatusCommand)(nil)

// NewStatusCommand creates a status command.
func NewStatusCommand() *StatusCommand {
	return &StatusCommand{slot: bridge.NewSlot[Status]()}
}

// Result returns the reader half of the command's result slot.
func (cmd *StatusCommand) Result() *bridge.Slot[Status] {
	return cmd.slot
}

func (cmd *StatusCommand) Name() string {
	return "emulation.status"
}

func (cmd *StatusCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *StatusCommand) Execute(env *bridge.Env) error {
	ctl, err := controllerOf(env)
	if err != nil {
		return err
	}

	status := Status{
		Loaded: env.Loaded(),
		Paused: ctl.Paused(),
	}
	status.Running = status.Loaded && !status.Paused
	if status.Loaded {
		status.FPS = ctl.FPS()
		status.FrameCount = ctl.FrameCount()
	}

	cmd.slot.Resolve(status)
	return nil
}
