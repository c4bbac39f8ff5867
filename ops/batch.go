package ops

import (
	"fmt"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/memmap"
)

// OpKind tags a batch sub-operation.
type OpKind int

const (
	OpRead OpKind = iota
	OpWrite
)

func (kind OpKind) String() string {
	switch kind {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// BatchOp is one sub-operation of a batch command.
type BatchOp struct {
	Kind   OpKind
	Addr   uint16
	Length int     // reads
	Data   []uint8 // writes
}

// BatchOpResult is the outcome of one sub-operation. Err is set when the
// sub-operation failed; its siblings are unaffected.
type BatchOpResult struct {
	Kind         OpKind
	Addr         uint16
	Data         []uint8
	BytesWritten int
	Err          error
}

// BatchResult carries one result per sub-operation, index for index,
// regardless of per-operation failure.
type BatchResult struct {
	Results []BatchOpResult
}

// BatchCommand executes its sub-operations strictly in order under the one
// lock acquisition the executor grants, so no other command interleaves
// between them. This is non-interleaving atomicity only: a failed
// sub-operation is recorded in its own result and execution continues.
type BatchCommand struct {
	Ops []BatchOp

	slot *bridge.Slot[BatchResult]
}

var _ bridge.Command = (*BatchCommand)(nil)

// NewBatchCommand creates a batch command over the given sub-operations.
func NewBatchCommand(batchOps []BatchOp) (cmd *BatchCommand) {
	cmd = &BatchCommand{
		Ops:  batchOps,
		slot: bridge.NewSlot[BatchResult](),
	}

	return
}

// Result returns the reader half of the command's result slot.
func (cmd *BatchCommand) Result() *bridge.Slot[BatchResult] {
	return cmd.slot
}

func (cmd *BatchCommand) Name() string {
	return "memory.batch"
}

func (cmd *BatchCommand) Cancel(err error) {
	cmd.slot.Fail(err)
}

func (cmd *BatchCommand) Execute(env *bridge.Env) error {
	if len(cmd.Ops) == 0 {
		return fmt.Errorf("%w: no operations provided", bridge.ErrInvalidArgument)
	}
	if len(cmd.Ops) > MAX_BATCH_OPS {
		return fmt.Errorf("%w: %d operations exceeds maximum %d",
			bridge.ErrInvalidArgument, len(cmd.Ops), MAX_BATCH_OPS)
	}
	if !env.Loaded() {
		return bridge.ErrEngineUnavailable
	}

	results := make([]BatchOpResult, 0, len(cmd.Ops))
	for _, op := range cmd.Ops {
		switch op.Kind {
		case OpRead:
			results = append(results, executeRead(env, op))
		case OpWrite:
			results = append(results, executeWrite(env, op))
		default:
			results = append(results, BatchOpResult{
				Kind: op.Kind,
				Addr: op.Addr,
				Err:  fmt.Errorf("%w: unknown operation kind %d", bridge.ErrInvalidArgument, op.Kind),
			})
		}
	}

	cmd.slot.Resolve(BatchResult{Results: results})
	return nil
}

func executeRead(env *bridge.Env, op BatchOp) (res BatchOpResult) {
	res.Kind = OpRead
	res.Addr = op.Addr

	res.Err = validateRange(op.Addr, op.Length)
	if res.Err != nil {
		return
	}

	data := make([]uint8, 0, op.Length)
	read := func() error {
		for n := range op.Length {
			data = append(data, env.ReadByte(op.Addr+uint16(n)))
		}
		return nil
	}

	if memmap.SideEffectFree(op.Addr, op.Length) {
		res.Err = read()
	} else {
		res.Err = env.Suppressed(read)
	}
	if res.Err != nil {
		return
	}

	res.Data = data
	return
}

func executeWrite(env *bridge.Env, op BatchOp) (res BatchOpResult) {
	res.Kind = OpWrite
	res.Addr = op.Addr

	res.Err = validateWrite(op.Addr, op.Data, env.SaveBacked())
	if res.Err != nil {
		return
	}

	for n, value := range op.Data {
		env.WriteByte(op.Addr+uint16(n), value)
	}

	res.BytesWritten = len(op.Data)
	return
}
