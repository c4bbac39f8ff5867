package ops

import (
	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/memmap"
)

// ReadResult is the outcome of a memory range read.
type ReadResult struct {
	Start uint16
	Data  []uint8
}

// Checksum returns the XOR of every byte read.
func (res ReadResult) Checksum() (sum uint8) {
	for _, value := range res.Data {
		sum ^= value
	}
	return
}

// ReadCommand reads Length bytes starting at Addr. Reads are always
// permitted regardless of region, but run with side-effect suppression
// enabled so register regions stay undisturbed.
type ReadCommand struct {
	Addr   uint16
	Length int

	slot *bridge.Slot[ReadResult]
}

var _ bridge.Command = (*ReadCommand)(nil)

// NewReadCommand creates a range read command.
func NewReadCommand(addr uint16, length int) (cmd *ReadCommand) {
	cmd = &ReadCommand{
		Addr:   addr,
		Length: length,
		slot:   bridge.NewSlot[ReadResult](),
	}

	return
}

// Result returns the reader half of the command's result slot. Keep it
// before pushing; the push may be rejected.
func (cmd *ReadCommand) Result() *bridge.Slot[ReadResult] {
	return cmd.slot
}

func (cmd *ReadCommand) Name() string {
	return "memory.read"
}

func (cmd *ReadCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *ReadCommand) Execute(env *bridge.Env) error {
	err := validateRange(cmd.Addr, cmd.Length)
	if err != nil {
		return err
	}
	if !env.Loaded() {
		return bridge.ErrEngineUnavailable
	}

	data := make([]uint8, 0, cmd.Length)
	read := func() error {
		for n := range cmd.Length {
			data = append(data, env.ReadByte(cmd.Addr+uint16(n)))
		}
		return nil
	}

	// Suppression only matters when the range touches a register region.
	if memmap.SideEffectFree(cmd.Addr, cmd.Length) {
		err = read()
	} else {
		err = env.Suppressed(read)
	}
	if err != nil {
		return err
	}

	cmd.slot.Resolve(ReadResult{Start: cmd.Addr, Data: data})
	return nil
}

// WriteResult is the outcome of a memory range write.
type WriteResult struct {
	Start        uint16
	BytesWritten int
}

// WriteCommand writes Data starting at Addr. Targets outside the canonical
// RAM window or the (battery-gated) save RAM window are rejected with
// ErrUnsafe before any byte is written.
type WriteCommand struct {
	Addr uint16
	Data []uint8

	slot *bridge.Slot[WriteResult]
}

var _ bridge.Command = (*WriteCommand)(nil)

// NewWriteCommand creates a range write command.
func NewWriteCommand(addr uint16, data []uint8) (cmd *WriteCommand) {
	cmd = &WriteCommand{
		Addr: addr,
		Data: data,
		slot: bridge.NewSlot[WriteResult](),
	}

	return
}

// Result returns the reader half of the command's result slot.
func (cmd *WriteCommand) Result() *bridge.Slot[WriteResult] {
	return cmd.slot
}

func (cmd *WriteCommand) Name() string {
	return "memory.write"
}

func (cmd *WriteCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *WriteCommand) Execute(env *bridge.Env) error {
	if !env.Loaded() {
		return bridge.ErrEngineUnavailable
	}
	err := validateWrite(cmd.Addr, cmd.Data, env.SaveBacked())
	if err != nil {
		return err
	}

	for n, value := range cmd.Data {
		env.WriteByte(cmd.Addr+uint16(n), value)
	}

	cmd.slot.Resolve(WriteResult{Start: cmd.Addr, BytesWritten: len(cmd.Data)})
	return nil
}
