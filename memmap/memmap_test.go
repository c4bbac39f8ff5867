package memmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(RegionRAM, RegionOf(0x0000))
	assert.Equal(RegionRAM, RegionOf(0x07ff))
	assert.Equal(RegionRAMMirror, RegionOf(0x0800))
	assert.Equal(RegionRAMMirror, RegionOf(0x1fff))
	assert.Equal(RegionPPURegister, RegionOf(0x2000))
	assert.Equal(RegionPPURegister, RegionOf(0x2002))
	assert.Equal(RegionPPURegister, RegionOf(0x3fff))
	assert.Equal(RegionAPUIORegister, RegionOf(0x4000))
	assert.Equal(RegionAPUIORegister, RegionOf(0x4016))
	assert.Equal(RegionAPUIORegister, RegionOf(0x401f))
	assert.Equal(RegionExpansion, RegionOf(0x4020))
	assert.Equal(RegionExpansion, RegionOf(0x5fff))
	assert.Equal(RegionSaveRAM, RegionOf(0x6000))
	assert.Equal(RegionSaveRAM, RegionOf(0x7fff))
	assert.Equal(RegionPRGROM, RegionOf(0x8000))
	assert.Equal(RegionPRGROM, RegionOf(0xffff))
}

func TestRegionString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ram", RegionRAM.String())
	assert.Equal("prg-rom", RegionPRGROM.String())
	assert.Equal("unknown", Region(99).String())
}

func TestPolicyOf(t *testing.T) {
	assert := assert.New(t)

	assert.True(PolicyOf(RegionRAM).ReadSideEffectFree)
	assert.True(PolicyOf(RegionRAM).WriteAllowed)
	assert.False(PolicyOf(RegionRAM).WriteNeedsSave)

	assert.False(PolicyOf(RegionPPURegister).ReadSideEffectFree)
	assert.False(PolicyOf(RegionPPURegister).WriteAllowed)

	assert.True(PolicyOf(RegionSaveRAM).WriteAllowed)
	assert.True(PolicyOf(RegionSaveRAM).WriteNeedsSave)
}

func TestReadable(t *testing.T) {
	assert := assert.New(t)

	assert.True(Readable(0x0000, 1))
	assert.True(Readable(0x2002, 8))
	assert.True(Readable(0x0000, 0x10000))
	assert.True(Readable(0xffff, 1))

	assert.False(Readable(0x0000, 0))
	assert.False(Readable(0x0000, -1))
	assert.False(Readable(0xffff, 2))
	assert.False(Readable(0x0001, 0x10000))
}

func TestSideEffectFree(t *testing.T) {
	assert := assert.New(t)

	assert.True(SideEffectFree(0x0000, 1))
	assert.True(SideEffectFree(0x0000, 0x2000)) // ram plus its mirrors
	assert.True(SideEffectFree(0x6000, 0x2000))
	assert.True(SideEffectFree(0x8000, 0x8000))

	// Register regions disturb state on unsuppressed reads.
	assert.False(SideEffectFree(0x2002, 1))
	assert.False(SideEffectFree(0x1fff, 2)) // crosses into ppu registers
	assert.False(SideEffectFree(0x4016, 1))

	// Malformed ranges.
	assert.False(SideEffectFree(0x0000, 0))
	assert.False(SideEffectFree(0xffff, 2))
}

func TestWriteSafe(t *testing.T) {
	assert := assert.New(t)

	// Canonical RAM window.
	assert.True(WriteSafe(0x0000, 1, false))
	assert.True(WriteSafe(0x07ff, 1, false))
	assert.True(WriteSafe(0x0000, 0x800, false))

	// Mirrors are not writable through this path.
	assert.False(WriteSafe(0x0800, 1, false))
	assert.False(WriteSafe(0x07ff, 2, false))

	// Save RAM is capability-gated.
	assert.False(WriteSafe(0x6000, 1, false))
	assert.True(WriteSafe(0x6000, 1, true))
	assert.True(WriteSafe(0x6000, 0x2000, true))
	assert.False(WriteSafe(0x5fff, 2, true))
	assert.False(WriteSafe(0x7fff, 2, true))

	// Registers and ROM are never writable.
	assert.False(WriteSafe(0x2000, 1, true))
	assert.False(WriteSafe(0x4016, 1, true))
	assert.False(WriteSafe(0x8000, 1, true))
	assert.False(WriteSafe(0x8000, 1, false))

	// Malformed ranges.
	assert.False(WriteSafe(0x0000, 0, false))
	assert.False(WriteSafe(0xffff, 2, false))
}
