package stm

// execCtx is the per-attempt execution context threaded through every leaf:
// the journal being populated, the running fiber's identity, and the
// trampoline's frame counter and budget.
type execCtx struct {
	journal      *Journal
	fiberID      uint64
	frameCounter int
	maxFrames    int
}

type nodeKind int

const (
	nodeLeaf nodeKind = iota
	nodeFlatMap
	nodeFold
	nodeEnsuring
	nodeOrElse
	nodeSuspend
)

// node is the untyped AST a public STM[A] value wraps. Leaves carry their
// work as a closure; the structural kinds (flatMap/fold/ensuring/orElse)
// exist so the trampoline can drive composition without growing the host
// call stack with chain length. Type information lives only in the STM[A]
// wrapper and in the closures captured by the constructors in stm.go — the
// interpreter itself only ever moves `any` values around.
type node struct {
	kind nodeKind

	leaf func(*execCtx) texit // nodeLeaf

	src *node // nodeFlatMap / nodeFold / nodeEnsuring / nodeOrElse ("self")

	k func(any) *node // nodeFlatMap continuation

	onFail    func(error) *node // nodeFold
	onSucceed func(any) *node   // nodeFold

	alt *node // nodeOrElse ("that")

	finalizer *node // nodeEnsuring

	suspendThunk func() *node // nodeSuspend
}
