package engine

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"iter"
	"maps"
)

const (
	INES_HEADER_SIZE = 16
	PRG_BANK_SIZE    = 16384
	CHR_BANK_SIZE    = 8192
	TRAINER_SIZE     = 512

	// iNES flags6 bits
	INES_MIRROR_VERTICAL = 0x01
	INES_BATTERY         = 0x02
	INES_TRAINER         = 0x04
	INES_FOUR_SCREEN     = 0x08
)

var _ines_magic = []uint8{'N', 'E', 'S', 0x1a}

// Mirroring is the nametable arrangement declared by the rom header.
type Mirroring int

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorFourScreen
)

func (m Mirroring) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorFourScreen:
		return "4screen"
	default:
		return "unknown"
	}
}

// ROM is a parsed iNES image.
type ROM struct {
	Name       string
	PRG        []uint8
	CHR        []uint8
	MapperID   int
	Mirror     Mirroring
	HasBattery bool

	md5sum string
}

// LoadROM parses an iNES image. Name is a caller-supplied label, usually
// the source filename.
func LoadROM(name string, file io.Reader) (rom *ROM, err error) {
	header := make([]uint8, INES_HEADER_SIZE)
	_, err = io.ReadFull(file, header)
	if err != nil {
		err = ErrTruncated
		return
	}

	if !bytes.Equal(header[0:4], _ines_magic) {
		err = ErrBadMagic
		return
	}

	prgBanks := int(header[4])
	chrBanks := int(header[5])
	if prgBanks == 0 {
		err = ErrNoProgram
		return
	}

	flags6 := header[6]
	flags7 := header[7]

	rom = &ROM{
		Name:       name,
		MapperID:   int(flags6>>4) | int(flags7&0xf0),
		HasBattery: (flags6 & INES_BATTERY) != 0,
	}

	switch {
	case (flags6 & INES_FOUR_SCREEN) != 0:
		rom.Mirror = MirrorFourScreen
	case (flags6 & INES_MIRROR_VERTICAL) != 0:
		rom.Mirror = MirrorVertical
	default:
		rom.Mirror = MirrorHorizontal
	}

	if (flags6 & INES_TRAINER) != 0 {
		_, err = io.CopyN(io.Discard, file, TRAINER_SIZE)
		if err != nil {
			err = ErrTruncated
			return
		}
	}

	rom.PRG = make([]uint8, prgBanks*PRG_BANK_SIZE)
	_, err = io.ReadFull(file, rom.PRG)
	if err != nil {
		err = ErrTruncated
		return
	}

	rom.CHR = make([]uint8, chrBanks*CHR_BANK_SIZE)
	_, err = io.ReadFull(file, rom.CHR)
	if err != nil {
		err = ErrTruncated
		return
	}

	rom.md5sum = fmt.Sprintf("%x", md5.Sum(rom.PRG))

	return
}

// Size returns the total image payload size in bytes.
func (rom *ROM) Size() int {
	return len(rom.PRG) + len(rom.CHR)
}

// MD5 returns the hex digest of the program banks.
func (rom *ROM) MD5() string {
	return rom.md5sum
}

// Info returns an iterator over rom description key/value pairs.
func (rom *ROM) Info() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"rom":       rom.Name,
		"mapper":    fmt.Sprintf("%d", rom.MapperID),
		"mirroring": rom.Mirror.String(),
		"battery":   fmt.Sprintf("%v", rom.HasBattery),
		"md5":       rom.md5sum,
	})
}
