// Package bridge carries commands from concurrent callers onto the
// emulation tick. Callers construct a command, push it onto a bounded
// queue, and wait on the command's result slot with a timeout; the
// executor drains the queue on the engine's own tick with the engine lock
// held, so commands are mutually exclusive with each other and with every
// other source of engine mutation.
package bridge

// Engine is the surface the bridge consumes from the emulation core.
// Lock serializes all engine mutation; ReadByte and WriteByte perform any
// internal address aliasing themselves; SetSuppress toggles the mode that
// keeps reads of register regions from disturbing machine state and
// returns the previous setting.
type Engine interface {
	Lock()
	Unlock()

	// Loaded reports whether a rom is currently loaded.
	Loaded() bool
	// SaveBacked reports whether a battery-backed save store is present.
	SaveBacked() bool

	ReadByte(addr uint16) uint8
	WriteByte(addr uint16, value uint8)
	SetSuppress(on bool) (was bool)
}

// Command is one unit of work against the engine. Execute runs with the
// engine lock held and must not block; a returned error is normalized into
// the command's own failure outcome by the executor. Cancel resolves the
// command's result slot with the given error when the command will never
// run (queue cleared) or its execution failed.
type Command interface {
	Execute(env *Env) error
	Name() string
	Cancel(err error)
}

// Env is the capability object handed to each executing command. It wraps
// the engine accessors so commands never reach for globals.
type Env struct {
	eng Engine
}

// NewEnv wraps an engine for command execution.
func NewEnv(eng Engine) *Env {
	return &Env{eng: eng}
}

// Engine exposes the underlying engine for commands that need a wider
// surface than the byte accessors.
func (env *Env) Engine() Engine {
	return env.eng
}

// Loaded reports whether a rom is currently loaded.
func (env *Env) Loaded() bool {
	return env.eng.Loaded()
}

// SaveBacked reports whether a battery-backed save store is present.
func (env *Env) SaveBacked() bool {
	return env.eng.SaveBacked()
}

// ReadByte reads one byte through the engine accessors.
func (env *Env) ReadByte(addr uint16) uint8 {
	return env.eng.ReadByte(addr)
}

// WriteByte writes one byte through the engine accessors.
func (env *Env) WriteByte(addr uint16, value uint8) {
	env.eng.WriteByte(addr, value)
}

// Suppressed runs fn with side-effect suppression enabled, restoring the
// prior setting on every exit path. Reads of register regions are only
// safe inside this scope.
func (env *Env) Suppressed(fn func() error) (err error) {
	was := env.eng.SetSuppress(true)
	defer env.eng.SetSuppress(was)

	return fn()
}
