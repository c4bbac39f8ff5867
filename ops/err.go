package ops

import (
	"errors"

	"github.com/ezrec/nesbridge/translate"
)

var f = translate.From

var (
	// ErrNotSupported reports an engine that lacks the surface a command
	// needs (emulation control, joypad overlay, cartridge info).
	ErrNotSupported = errors.New(f("engine does not support this operation"))
)
