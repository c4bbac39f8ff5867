package rest

import (
	"fmt"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/memmap"
)

// ParseAddress turns a request address string into a 16-bit address.
// Accepted forms:
//   - "0x" prefix: hexadecimal
//   - arithmetic expressions ("0x6000+16"): evaluated
//   - bare digits with hex letters ("FF"): hexadecimal
//   - bare decimal digits: hex or decimal by heuristic -- whichever base
//     yields an address in a conventional window; when both do, values
//     ending in "00" that fit the RAM window read as hex ("300" is
//     0x0300, "768" is decimal)
func ParseAddress(input string) (addr uint16, err error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		err = fmt.Errorf("%w: empty address", bridge.ErrInvalidArgument)
		return
	}

	if strings.ContainsAny(trimmed, "+-*/() ") {
		return evalAddressExpr(trimmed)
	}

	if len(trimmed) > 2 && (strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X")) {
		return parseAddressBase(trimmed[2:], 16)
	}

	hasHexLetter := false
	allHexDigits := true
	for _, ch := range trimmed {
		switch {
		case ch >= '0' && ch <= '9':
		case (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F'):
			hasHexLetter = true
		default:
			allHexDigits = false
		}
	}

	switch {
	case !allHexDigits:
		// Let the decimal parser produce the error.
		return parseAddressBase(trimmed, 10)
	case hasHexLetter:
		return parseAddressBase(trimmed, 16)
	default:
		return parseAmbiguous(trimmed)
	}
}

// parseAmbiguous decides between hex and decimal for an all-digit string.
func parseAmbiguous(digits string) (addr uint16, err error) {
	hexValue, hexErr := strconv.ParseUint(digits, 16, 32)
	decValue, decErr := strconv.ParseUint(digits, 10, 32)

	hexValid := hexErr == nil && conventional(hexValue)
	decValid := decErr == nil && conventional(decValue)

	switch {
	case hexValid && !decValid:
		return uint16(hexValue), nil
	case decValid && !hexValid:
		return uint16(decValue), nil
	case hexValid && decValid:
		// Round hex-looking numbers ("300") read as hex.
		if strings.HasSuffix(digits, "00") && hexValue <= memmap.RAM_END {
			return uint16(hexValue), nil
		}
		return uint16(decValue), nil
	default:
		return parseAddressBase(digits, 10)
	}
}

// conventional reports whether a value lands in the windows addresses are
// normally quoted in: RAM or save RAM.
func conventional(value uint64) bool {
	if value > 0xffff {
		return false
	}
	addr := uint16(value)
	return addr <= memmap.RAM_END ||
		(addr >= memmap.SAVE_RAM_START && addr <= memmap.SAVE_RAM_END)
}

func parseAddressBase(digits string, base int) (addr uint16, err error) {
	value, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		err = fmt.Errorf("%w: invalid address format %q", bridge.ErrInvalidArgument, digits)
		return
	}
	if value > 0xffff {
		err = fmt.Errorf("%w: address 0x%x out of 16-bit range", bridge.ErrInvalidArgument, value)
		return
	}

	addr = uint16(value)
	return
}

const (
	// ADDRESS_EXPR_MAX_LEN caps the accepted expression text. Address
	// arithmetic is short; anything longer is abuse, not an address.
	ADDRESS_EXPR_MAX_LEN = 64

	// ADDRESS_EXPR_MAX_STEPS caps interpreter work per expression.
	ADDRESS_EXPR_MAX_STEPS = 10000
)

// evalAddressExpr evaluates an arithmetic address expression. Expressions
// run on the request goroutine, so length, exponentiation, and execution
// steps are all capped.
func evalAddressExpr(expr string) (addr uint16, err error) {
	if len(expr) > ADDRESS_EXPR_MAX_LEN {
		err = fmt.Errorf("%w: address expression too long", bridge.ErrInvalidArgument)
		return
	}
	if strings.Contains(expr, "**") {
		err = fmt.Errorf("%w: exponentiation not allowed in address expression %q",
			bridge.ErrInvalidArgument, expr)
		return
	}

	thread := starlark.Thread{}
	thread.SetMaxExecutionSteps(ADDRESS_EXPR_MAX_STEPS)
	opts := syntax.FileOptions{}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "addr", prog, nil)
	if err != nil {
		err = fmt.Errorf("%w: invalid address expression %q", bridge.ErrInvalidArgument, expr)
		return
	}

	st_rc, ok := dict["rc"]
	if !ok {
		err = fmt.Errorf("%w: invalid address expression %q", bridge.ErrInvalidArgument, expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = fmt.Errorf("%w: address expression %q is not an integer", bridge.ErrInvalidArgument, expr)
		return
	}
	value, ok := st_int.Int64()
	if !ok || value < 0 || value > 0xffff {
		err = fmt.Errorf("%w: address expression %q out of 16-bit range", bridge.ErrInvalidArgument, expr)
		return
	}

	addr = uint16(value)
	return
}
