package storage

// OpKind distinguishes a staged Put from a staged Delete within a Batch.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one staged mutation.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte // unused for OpDelete
}

// Batch accumulates mutations to apply atomically at the next Commit. Mirrors
// the teacher's pattern of collecting writes before a single SetSync flush,
// generalized from "one KV write per call" to an explicit staged-then-applied
// sequence so block-mode and immediate-mode can share one Apply/Commit path.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages a key/value write.
func (b *Batch) Put(key, value []byte) *Batch {
	b.ops = append(b.ops, Op{Kind: OpPut, Key: key, Value: value})
	return b
}

// Delete stages a key removal.
func (b *Batch) Delete(key []byte) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: key})
	return b
}

// Len reports the number of staged operations.
func (b *Batch) Len() int { return len(b.ops) }

// Ops exposes the staged operations in application order.
func (b *Batch) Ops() []Op {
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}
