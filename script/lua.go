// Package script embeds a Lua interpreter with an "nes" table whose
// functions submit commands through the bridge queue, so scripts see the
// same safety classification and ordering as any other caller.
package script

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/ops"
)

// SCRIPT_DEFAULT_TIMEOUT bounds each scripted command's wait on its
// result slot.
const SCRIPT_DEFAULT_TIMEOUT = 2 * time.Second

// Host runs Lua scripts against a bridge queue.
type Host struct {
	Queue   *bridge.Queue
	Plan    *ops.ReleasePlan
	Timeout time.Duration
}

// NewHost creates a host; plan may be nil to disable timed joypad
// releases.
func NewHost(queue *bridge.Queue, plan *ops.ReleasePlan) (host *Host) {
	host = &Host{
		Queue:   queue,
		Plan:    plan,
		Timeout: SCRIPT_DEFAULT_TIMEOUT,
	}

	return
}

// Run executes a Lua source string with the "nes" table installed.
func (host *Host) Run(source string) (err error) {
	state := lua.NewState()
	defer state.Close()

	host.install(state)

	return state.DoString(source)
}

// RunFile executes a Lua script file with the "nes" table installed.
func (host *Host) RunFile(path string) (err error) {
	state := lua.NewState()
	defer state.Close()

	host.install(state)

	return state.DoFile(path)
}

func (host *Host) install(state *lua.LState) {
	nes := state.NewTable()

	state.SetField(nes, "read", state.NewFunction(host.luaRead))
	state.SetField(nes, "write", state.NewFunction(host.luaWrite))
	state.SetField(nes, "joypad", state.NewFunction(host.luaJoypad))
	state.SetField(nes, "status", state.NewFunction(host.luaStatus))

	buttons := state.NewTable()
	state.SetField(buttons, "A", lua.LNumber(ops.JOY_A))
	state.SetField(buttons, "B", lua.LNumber(ops.JOY_B))
	state.SetField(buttons, "SELECT", lua.LNumber(ops.JOY_SELECT))
	state.SetField(buttons, "START", lua.LNumber(ops.JOY_START))
	state.SetField(buttons, "UP", lua.LNumber(ops.JOY_UP))
	state.SetField(buttons, "DOWN", lua.LNumber(ops.JOY_DOWN))
	state.SetField(buttons, "LEFT", lua.LNumber(ops.JOY_LEFT))
	state.SetField(buttons, "RIGHT", lua.LNumber(ops.JOY_RIGHT))
	state.SetField(nes, "button", buttons)

	state.SetGlobal("nes", nes)
}

// submit pushes a command and waits on its slot, converting failures
// into Lua errors on the calling state.
func submit[T any](host *Host, state *lua.LState, cmd bridge.Command, slot *bridge.Slot[T]) (value T) {
	if !host.Queue.Push(cmd) {
		state.RaiseError("%v", bridge.ErrQueueFull)
		return
	}

	value, err := slot.Wait(host.Timeout)
	if err != nil {
		state.RaiseError("%v", err)
	}
	return
}

func checkAddress(state *lua.LState, n int) uint16 {
	value := state.CheckInt(n)
	if value < 0 || value > 0xffff {
		state.RaiseError("%v", fmt.Errorf("%w: address %d out of 16-bit range",
			bridge.ErrInvalidArgument, value))
	}
	return uint16(value)
}

// nes.read(addr, length) -> string of bytes
func (host *Host) luaRead(state *lua.LState) int {
	addr := checkAddress(state, 1)
	length := state.OptInt(2, 1)

	cmd := ops.NewReadCommand(addr, length)
	res := submit(host, state, cmd, cmd.Result())

	state.Push(lua.LString(res.Data))
	return 1
}

// nes.write(addr, data) -> bytes written; data is a byte string or a
// single integer value
func (host *Host) luaWrite(state *lua.LState) int {
	addr := checkAddress(state, 1)

	var data []uint8
	switch arg := state.CheckAny(2).(type) {
	case lua.LNumber:
		value := int(arg)
		if value < 0 || value > 0xff {
			state.RaiseError("%v", fmt.Errorf("%w: value %d out of byte range",
				bridge.ErrInvalidArgument, value))
		}
		data = []uint8{uint8(value)}
	case lua.LString:
		data = []uint8(arg)
	default:
		state.RaiseError("%v", fmt.Errorf("%w: data must be a string or integer",
			bridge.ErrInvalidArgument))
	}

	cmd := ops.NewWriteCommand(addr, data)
	res := submit(host, state, cmd, cmd.Result())

	state.Push(lua.LNumber(res.BytesWritten))
	return 1
}

// nes.joypad(port, buttons [, frames]) -> release frame (0 when held)
func (host *Host) luaJoypad(state *lua.LState) int {
	port := state.CheckInt(1)
	buttons := state.CheckInt(2)
	frames := state.OptInt(3, 0)

	if buttons < 0 || buttons > 0xff {
		state.RaiseError("%v", fmt.Errorf("%w: button mask %d out of byte range",
			bridge.ErrInvalidArgument, buttons))
	}

	cmd := ops.NewJoypadCommand(port, uint8(buttons), frames, host.Plan)
	res := submit(host, state, cmd, cmd.Result())

	state.Push(lua.LNumber(res.ReleaseFrame))
	return 1
}

// nes.status() -> table {running, paused, rom_loaded, fps, frame_count}
func (host *Host) luaStatus(state *lua.LState) int {
	cmd := ops.NewStatusCommand()
	status := submit(host, state, cmd, cmd.Result())

	table := state.NewTable()
	state.SetField(table, "running", lua.LBool(status.Running))
	state.SetField(table, "paused", lua.LBool(status.Paused))
	state.SetField(table, "rom_loaded", lua.LBool(status.Loaded))
	state.SetField(table, "fps", lua.LNumber(status.FPS))
	state.SetField(table, "frame_count", lua.LNumber(status.FrameCount))

	state.Push(table)
	return 1
}
