// Package ops provides the concrete commands the bridge executes: memory
// reads and writes, batched memory operations, emulation control, joypad
// input, and rom information. Commands share one validation helper so
// address and length checks stay identical across operations.
package ops

import (
	"fmt"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/memmap"
)

const (
	// MAX_RANGE_LENGTH caps a single read or write range, bounding both
	// allocation and time spent under the engine lock.
	MAX_RANGE_LENGTH = 4096

	// MAX_BATCH_OPS caps the sub-operations of one batch command.
	MAX_BATCH_OPS = 100
)

// validateRange rejects empty, oversized, or out-of-bounds ranges.
func validateRange(addr uint16, length int) error {
	if length <= 0 {
		return fmt.Errorf("%w: length must be greater than 0", bridge.ErrInvalidArgument)
	}
	if length > MAX_RANGE_LENGTH {
		return fmt.Errorf("%w: length %d exceeds maximum %d",
			bridge.ErrInvalidArgument, length, MAX_RANGE_LENGTH)
	}
	if !memmap.Readable(addr, length) {
		return fmt.Errorf("%w: range 0x%04x+%d exceeds memory bounds",
			bridge.ErrInvalidArgument, addr, length)
	}

	return nil
}

// validateWrite rejects empty or oversized payloads, then applies the
// region write policy.
func validateWrite(addr uint16, data []uint8, saveBacked bool) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no data to write", bridge.ErrInvalidArgument)
	}
	if len(data) > MAX_RANGE_LENGTH {
		return fmt.Errorf("%w: data size %d exceeds maximum %d",
			bridge.ErrInvalidArgument, len(data), MAX_RANGE_LENGTH)
	}
	if !memmap.WriteSafe(addr, len(data), saveBacked) {
		return fmt.Errorf("%w: 0x%04x+%d (%v)",
			bridge.ErrUnsafe, addr, len(data), memmap.RegionOf(addr))
	}

	return nil
}
