package engine

import (
	"errors"

	"github.com/ezrec/nesbridge/translate"
)

var f = translate.From

var (
	// ROM image errors
	ErrBadMagic  = errors.New(f("not an ines image"))
	ErrNoProgram = errors.New(f("image has no program banks"))
	ErrTruncated = errors.New(f("image truncated"))
	ErrNotLoaded = errors.New(f("no rom loaded"))
)
