// Package engine implements a minimal NES machine exposing the accessor
// surface the command bridge consumes: a global lock, byte-addressed
// memory access with internal aliasing, a toggleable side-effect
// suppression mode, and the status, cartridge, and joypad surfaces the
// command set needs. The hardware model is deliberately shallow -- just
// deep enough that register reads really do have observable side effects
// and suppression really does matter.
package engine

import (
	"iter"
	"maps"
	"sync"

	"github.com/ezrec/nesbridge/internal"
)

const (
	RAM_SIZE  = 0x0800
	SRAM_SIZE = 0x2000
	VRAM_SIZE = 0x0800
	OAM_SIZE  = 256

	// NTSC_FPS is the NTSC frame rate.
	NTSC_FPS = 60.0988

	JOYPAD_PORTS = 4
)

// PPU register index within the 8-byte window.
const (
	PPU_CTRL = iota
	PPU_MASK
	PPU_STATUS
	OAM_ADDR
	OAM_DATA
	PPU_SCROLL
	PPU_ADDR
	PPU_DATA
)

// PPU_STATUS_VBLANK is the vblank bit; reading PPU_STATUS clears it.
const PPU_STATUS_VBLANK = 0x80

var _machine_info = map[string]string{
	"model":  "NES",
	"region": "NTSC",
}

// Machine is the emulation core. All mutation happens under its lock; the
// bridge executor and the tick loop both honor that.
type Machine struct {
	Verbose bool

	mu  sync.Mutex
	rom *ROM

	ram  [RAM_SIZE]uint8
	sram [SRAM_SIZE]uint8
	vram [VRAM_SIZE]uint8
	oam  [OAM_SIZE]uint8

	suppress bool
	paused   bool
	frame    int

	// PPU latches
	ppuCtrl       uint8
	ppuMask       uint8
	ppuStatus     uint8
	oamAddr       uint8
	ppuAddr       uint16
	ppuAddrHigh   bool
	ppuReadBuffer uint8

	// Controller state: base pad bits, plus the overlay masks applied on
	// top of them (AND clears, OR forces).
	joyStrobe bool
	joyShift  [JOYPAD_PORTS]int
	joyState  [JOYPAD_PORTS]uint8
	joyAnd    [JOYPAD_PORTS]uint8
	joyOr     [JOYPAD_PORTS]uint8
}

// NewMachine creates a powered-on machine with no rom loaded.
func NewMachine() (m *Machine) {
	m = &Machine{}

	for port := range JOYPAD_PORTS {
		m.joyAnd[port] = 0xff
	}

	return
}

// Lock acquires the machine's global lock.
func (m *Machine) Lock() {
	m.mu.Lock()
}

// Unlock releases the machine's global lock.
func (m *Machine) Unlock() {
	m.mu.Unlock()
}

// Insert loads a parsed rom and resets machine state. Safe to call from
// any goroutine.
func (m *Machine) Insert(rom *ROM) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rom = rom
	m.frame = 0
	m.paused = false
	m.ppuStatus = 0
	m.ppuAddr = 0
	m.ppuAddrHigh = false
	m.ppuReadBuffer = 0
	clear(m.ram[:])
	clear(m.vram[:])
}

// Eject unloads the current rom. Reports ErrNotLoaded when nothing is
// inserted.
func (m *Machine) Eject() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rom == nil {
		err = ErrNotLoaded
		return
	}

	m.rom = nil
	return
}

// Loaded reports whether a rom is currently loaded. Callers hold the
// machine lock.
func (m *Machine) Loaded() bool {
	return m.rom != nil
}

// SaveBacked reports whether the loaded rom carries battery-backed save
// RAM. Callers hold the machine lock.
func (m *Machine) SaveBacked() bool {
	return m.rom != nil && m.rom.HasBattery
}

// SetSuppress toggles side-effect suppression and returns the previous
// setting. Callers hold the machine lock.
func (m *Machine) SetSuppress(on bool) (was bool) {
	was = m.suppress
	m.suppress = on
	return
}

// ReadByte reads one byte, applying internal address aliasing. With
// suppression off, register reads perform their hardware side effects.
// Callers hold the machine lock.
func (m *Machine) ReadByte(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return m.ram[addr%RAM_SIZE]
	case addr < 0x4000:
		return m.readPPU(int(addr % 8))
	case addr <= 0x401f:
		return m.readIO(addr)
	case addr <= 0x5fff:
		return 0 // open bus
	case addr <= 0x7fff:
		return m.sram[addr-0x6000]
	default:
		if m.rom == nil {
			return 0
		}
		return m.rom.PRG[int(addr-0x8000)%len(m.rom.PRG)]
	}
}

// WriteByte writes one byte, applying internal address aliasing. Writes to
// rom space are dropped. Callers hold the machine lock.
func (m *Machine) WriteByte(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		m.ram[addr%RAM_SIZE] = value
	case addr < 0x4000:
		m.writePPU(int(addr%8), value)
	case addr == 0x4016:
		m.writeStrobe(value)
	case addr <= 0x401f:
		// APU stubs, ignored
	case addr <= 0x5fff:
		// open bus
	case addr <= 0x7fff:
		m.sram[addr-0x6000] = value
	default:
		// rom space
	}
}

func (m *Machine) readPPU(reg int) (value uint8) {
	switch reg {
	case PPU_STATUS:
		value = m.ppuStatus
		if !m.suppress {
			m.ppuStatus &^= PPU_STATUS_VBLANK
			m.ppuAddrHigh = false
		}
	case OAM_DATA:
		value = m.oam[m.oamAddr]
	case PPU_DATA:
		// Buffered read: the value returned lags the address by one
		// fetch. The buffer refill and address increment are the side
		// effects suppression must hold back.
		value = m.ppuReadBuffer
		if !m.suppress {
			m.ppuReadBuffer = m.vram[m.ppuAddr%VRAM_SIZE]
			m.ppuAddr += m.ppuIncrement()
		}
	default:
		// write-only registers read back as open bus
	}

	return
}

func (m *Machine) writePPU(reg int, value uint8) {
	switch reg {
	case PPU_CTRL:
		m.ppuCtrl = value
	case PPU_MASK:
		m.ppuMask = value
	case OAM_ADDR:
		m.oamAddr = value
	case OAM_DATA:
		m.oam[m.oamAddr] = value
		m.oamAddr++
	case PPU_ADDR:
		if !m.ppuAddrHigh {
			m.ppuAddr = (m.ppuAddr & 0x00ff) | (uint16(value) << 8)
		} else {
			m.ppuAddr = (m.ppuAddr & 0xff00) | uint16(value)
		}
		m.ppuAddrHigh = !m.ppuAddrHigh
	case PPU_DATA:
		m.vram[m.ppuAddr%VRAM_SIZE] = value
		m.ppuAddr += m.ppuIncrement()
	}
}

func (m *Machine) ppuIncrement() uint16 {
	if (m.ppuCtrl & 0x04) != 0 {
		return 32
	}
	return 1
}

func (m *Machine) readIO(addr uint16) (value uint8) {
	switch addr {
	case 0x4016, 0x4017:
		port := int(addr - 0x4016)
		pad := m.Joypad(port)
		if m.joyStrobe {
			return pad & 0x01
		}
		if m.joyShift[port] < 8 {
			value = (pad >> m.joyShift[port]) & 1
		} else {
			value = 1
		}
		if !m.suppress {
			m.joyShift[port]++
		}
	}

	return
}

func (m *Machine) writeStrobe(value uint8) {
	strobe := (value & 1) != 0
	if m.joyStrobe && !strobe {
		for port := range JOYPAD_PORTS {
			m.joyShift[port] = 0
		}
	}
	m.joyStrobe = strobe
}

// Joypad returns the effective pad bits for a port: the base state with
// the overlay masks applied. Callers hold the machine lock.
func (m *Machine) Joypad(port int) uint8 {
	return (m.joyState[port] & m.joyAnd[port]) | m.joyOr[port]
}

// SetJoypad applies an overlay: with force, buttons are driven high over
// the base state; without, they are only allowed through. Callers hold
// the machine lock.
func (m *Machine) SetJoypad(port int, buttons uint8, force bool) {
	if port < 0 || port >= JOYPAD_PORTS {
		return
	}

	if force {
		m.joyOr[port] |= buttons
	} else {
		m.joyAnd[port] |= buttons
	}
}

// ReleaseJoypad stops forcing the given buttons. Callers hold the machine
// lock.
func (m *Machine) ReleaseJoypad(port int, buttons uint8) {
	if port < 0 || port >= JOYPAD_PORTS {
		return
	}

	m.joyOr[port] &^= buttons
}

// ClearJoypad drops the overlay for a port entirely. Callers hold the
// machine lock.
func (m *Machine) ClearJoypad(port int) {
	if port < 0 || port >= JOYPAD_PORTS {
		return
	}

	m.joyAnd[port] = 0xff
	m.joyOr[port] = 0
}

// Paused reports whether emulation is paused. Callers hold the machine
// lock.
func (m *Machine) Paused() bool {
	return m.paused
}

// SetPaused pauses or resumes emulation. Callers hold the machine lock.
func (m *Machine) SetPaused(paused bool) {
	m.paused = paused
}

// FrameCount returns frames elapsed since the rom was inserted. Callers
// hold the machine lock.
func (m *Machine) FrameCount() int {
	return m.frame
}

// FPS returns the nominal frame rate.
func (m *Machine) FPS() float64 {
	return NTSC_FPS
}

// StepFrame advances one frame: the frame counter ticks and vblank is
// raised. No-op while paused or with no rom loaded. Acquires the machine
// lock itself; call from the tick loop, not from commands.
func (m *Machine) StepFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused || m.rom == nil {
		return
	}

	m.frame++
	m.ppuStatus |= PPU_STATUS_VBLANK
}

// ROMName returns the loaded rom's label. Callers hold the machine lock
// or know a rom is loaded.
func (m *Machine) ROMName() string {
	if m.rom == nil {
		return ""
	}
	return m.rom.Name
}

// ROMSize returns the loaded rom's payload size.
func (m *Machine) ROMSize() int {
	if m.rom == nil {
		return 0
	}
	return m.rom.Size()
}

// Mapper returns the loaded rom's mapper number.
func (m *Machine) Mapper() int {
	if m.rom == nil {
		return 0
	}
	return m.rom.MapperID
}

// Mirroring returns the loaded rom's nametable arrangement.
func (m *Machine) Mirroring() string {
	if m.rom == nil {
		return ""
	}
	return m.rom.Mirror.String()
}

// Battery reports whether the loaded rom has battery-backed save RAM.
func (m *Machine) Battery() bool {
	return m.rom != nil && m.rom.HasBattery
}

// MD5 returns the loaded rom's program digest.
func (m *Machine) MD5() string {
	if m.rom == nil {
		return ""
	}
	return m.rom.MD5()
}

// Info returns an iterator over machine and rom description pairs.
func (m *Machine) Info() iter.Seq2[string, string] {
	m.mu.Lock()
	rom := m.rom
	m.mu.Unlock()

	if rom == nil {
		return maps.All(_machine_info)
	}

	return internal.IterSeq2Concat(maps.All(_machine_info), rom.Info())
}
