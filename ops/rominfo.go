package ops

import (
	"github.com/ezrec/nesbridge/bridge"
)

// Cartridge is the engine surface describing the loaded rom.
type Cartridge interface {
	ROMName() string
	ROMSize() int
	Mapper() int
	Mirroring() string
	Battery() bool
	MD5() string
}

// ROMInfo describes the loaded rom. When Loaded is false the remaining
// fields are zero.
type ROMInfo struct {
	Loaded    bool
	Name      string
	Size      int
	Mapper    int
	Mirroring string
	Battery   bool
	MD5       string
}

// ROMInfoCommand reports cartridge details. Resolves with Loaded false
// rather than failing when no rom is loaded.
type ROMInfoCommand struct {
	slot *bridge.Slot[ROMInfo]
}

var _ bridge.Command = (*ROMInfoCommand)(nil)

// NewROMInfoCommand creates a rom info command.
func NewROMInfoCommand() *ROMInfoCommand {
	return &ROMInfoCommand{slot: bridge.NewSlot[ROMInfo]()}
}

// Result returns the reader half of the command's result slot.
func (cmd *ROMInfoCommand) Result() *bridge.Slot[ROMInfo] {
	return cmd.slot
}

func (cmd *ROMInfoCommand) Name() string {
	return "rom.info"
}

func (cmd *ROMInfoCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *ROMInfoCommand) Execute(env *bridge.Env) error {
	cart, ok := env.Engine().(Cartridge)
	if !ok {
		return ErrNotSupported
	}

	if !env.Loaded() {
		cmd.slot.Resolve(ROMInfo{})
		return nil
	}

	cmd.slot.Resolve(ROMInfo{
		Loaded:    true,
		Name:      cart.ROMName(),
		Size:      cart.ROMSize(),
		Mapper:    cart.Mapper(),
		Mirroring: cart.Mirroring(),
		Battery:   cart.Battery(),
		MD5:       cart.MD5(),
	})
	return nil
}
