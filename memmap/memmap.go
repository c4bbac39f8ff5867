// Package memmap classifies the NES 16-bit address space into regions and
// answers read/write safety questions about address ranges. Classification
// is derived purely from the address, never from emulator state, so every
// function here is callable without the engine lock.
package memmap

// Region boundaries of the CPU address space.
const (
	RAM_END        = 0x07ff // 2KB internal RAM
	RAM_MIRROR_END = 0x1fff // RAM mirrored three more times
	PPU_REG_END    = 0x3fff // PPU registers, mirrored every 8 bytes
	APU_IO_END     = 0x401f // APU and I/O registers
	EXPANSION_END  = 0x5fff // Cartridge expansion area
	SAVE_RAM_START = 0x6000 // Battery-backed save RAM (when present)
	SAVE_RAM_END   = 0x7fff
	PRG_ROM_START  = 0x8000 // Program ROM, read-only

	// ADDRESS_SPACE is one past the last valid address.
	ADDRESS_SPACE = 0x10000
)

// Region identifies a named subrange of the address space.
type Region int

const (
	RegionRAM Region = iota
	RegionRAMMirror
	RegionPPURegister
	RegionAPUIORegister
	RegionExpansion
	RegionSaveRAM
	RegionPRGROM
)

var _region_names = map[Region]string{
	RegionRAM:           "ram",
	RegionRAMMirror:     "ram-mirror",
	RegionPPURegister:   "ppu-register",
	RegionAPUIORegister: "apu-io-register",
	RegionExpansion:     "expansion",
	RegionSaveRAM:       "save-ram",
	RegionPRGROM:        "prg-rom",
}

func (r Region) String() string {
	name, ok := _region_names[r]
	if !ok {
		return "unknown"
	}
	return name
}

// Policy describes what may be done to a region without disturbing the
// machine. WriteNeedsSave marks regions writable only when a battery-backed
// save store is present.
type Policy struct {
	ReadSideEffectFree bool
	WriteAllowed       bool
	WriteNeedsSave     bool
}

var _region_policies = map[Region]Policy{
	RegionRAM:           {ReadSideEffectFree: true, WriteAllowed: true},
	RegionRAMMirror:     {ReadSideEffectFree: true},
	RegionPPURegister:   {}, // reads have side effects, writes forbidden
	RegionAPUIORegister: {},
	RegionExpansion:     {ReadSideEffectFree: true},
	RegionSaveRAM:       {ReadSideEffectFree: true, WriteAllowed: true, WriteNeedsSave: true},
	RegionPRGROM:        {ReadSideEffectFree: true},
}

// RegionOf maps an address to its region. Total over the 16-bit space.
func RegionOf(addr uint16) Region {
	switch {
	case addr <= RAM_END:
		return RegionRAM
	case addr <= RAM_MIRROR_END:
		return RegionRAMMirror
	case addr <= PPU_REG_END:
		return RegionPPURegister
	case addr <= APU_IO_END:
		return RegionAPUIORegister
	case addr <= EXPANSION_END:
		return RegionExpansion
	case addr <= SAVE_RAM_END:
		return RegionSaveRAM
	default:
		return RegionPRGROM
	}
}

// PolicyOf returns the read/write policy for a region.
func PolicyOf(r Region) Policy {
	return _region_policies[r]
}

// Readable reports whether a range may be read. Reads never fail on region
// grounds; only a malformed range is rejected. Ranges that are not
// SideEffectFree must still be read with side-effect suppression enabled.
func Readable(addr uint16, length int) bool {
	if length <= 0 {
		return false
	}
	return int(addr)+length <= ADDRESS_SPACE
}

// SideEffectFree reports whether every address in the range may be read
// without disturbing machine state, per region policy. A malformed range
// reports false.
func SideEffectFree(start uint16, length int) bool {
	if !Readable(start, length) {
		return false
	}

	end := int(start) + length
	for addr := int(start); addr < end; addr++ {
		if !PolicyOf(RegionOf(uint16(addr))).ReadSideEffectFree {
			return false
		}
	}

	return true
}

// WriteSafe reports whether a range may be written, per region policy:
// every address must land in a region whose writes are allowed, and a
// region needing save backing is accepted only when saveBacked is set.
// Ranges running past the 16-bit space are rejected.
func WriteSafe(start uint16, length int, saveBacked bool) bool {
	if length <= 0 {
		return false
	}

	end := int(start) + length
	if end > ADDRESS_SPACE {
		return false
	}

	for addr := int(start); addr < end; addr++ {
		policy := PolicyOf(RegionOf(uint16(addr)))
		if !policy.WriteAllowed {
			return false
		}
		if policy.WriteNeedsSave && !saveBacked {
			return false
		}
	}

	return true
}
