package stm

// DefaultMaxFrames is the trampoline's default frame budget before a chunk
// bounces back to the outer driver loop.
const DefaultMaxFrames = 200

type contFrameKind int

const (
	frameFlatMap contFrameKind = iota
	frameFold
	frameEnsuring
	frameEnsuringResume
)

// contFrame is one entry of the driver's explicit continuation stack — the
// heap-allocated replacement for the Go call stack that would otherwise grow
// with every nested flatMap/fold/ensuring.
type contFrame struct {
	kind contFrameKind

	k func(any) *node // frameFlatMap

	onFail    func(error) *node // frameFold
	onSucceed func(any) *node   // frameFold

	finalizer *node // frameEnsuring

	original texit // frameEnsuringResume: the outcome to restore if the finalizer succeeded
}

// resumable packages a suspended sub-computation and its continuation stack
// once the frame budget is exceeded. It is a pure control-flow device, never
// observed outside this file.
type resumable struct {
	node  *node
	stack []contFrame
}

// applyCont pops continuation frames against outcome t until either a frame
// hands back a new node to keep driving, or the stack empties (final exit).
// This loop is flat — no recursion — so ensuring/fold/flatMap chains of any
// depth cost O(1) Go stack here too.
func applyCont(t texit, stack []contFrame) (*node, texit, []contFrame, bool) {
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch frame.kind {
		case frameFlatMap:
			if t.kind != texitSucceed {
				continue // Fail/Retry short-circuits flatMap, propagate unchanged
			}
			return frame.k(t.value), texit{}, stack, false

		case frameFold:
			switch t.kind {
			case texitSucceed:
				return frame.onSucceed(t.value), texit{}, stack, false
			case texitFail:
				return frame.onFail(t.err), texit{}, stack, false
			default:
				continue // retry passes through fold untouched; only orElse catches it
			}

		case frameEnsuring:
			if t.kind == texitRetry {
				continue // an abandoned attempt never runs its finalizer
			}
			stack = append(stack, contFrame{kind: frameEnsuringResume, original: t})
			return frame.finalizer, texit{}, stack, false

		case frameEnsuringResume:
			if t.kind == texitSucceed {
				t = frame.original
			}
			// if the finalizer itself failed or retried, that outcome wins
			continue
		}
	}
	return nil, t, stack, true
}

// driveChunk runs the interpreter until the computation finishes or the
// frame counter exceeds ctx.maxFrames, in which case it returns a resumable
// instead of recursing further.
func driveChunk(ctx *execCtx, n *node, stack []contFrame) (texit, *resumable) {
	for {
		ctx.frameCounter++
		if ctx.frameCounter > ctx.maxFrames {
			return texit{}, &resumable{node: n, stack: stack}
		}

		switch n.kind {
		case nodeLeaf:
			t := n.leaf(ctx)
			next, final, rest, done := applyCont(t, stack)
			if done {
				return final, nil
			}
			n, stack = next, rest

		case nodeFlatMap:
			stack = append(stack, contFrame{kind: frameFlatMap, k: n.k})
			n = n.src

		case nodeFold:
			stack = append(stack, contFrame{kind: frameFold, onFail: n.onFail, onSucceed: n.onSucceed})
			n = n.src

		case nodeEnsuring:
			stack = append(stack, contFrame{kind: frameEnsuring, finalizer: n.finalizer})
			n = n.src

		case nodeSuspend:
			n = n.suspendThunk()

		case nodeOrElse:
			snap := ctx.journal.snapshot()
			sub := run(ctx, n.src)
			if sub.kind != texitSucceed {
				ctx.journal.restore(snap)
				n = n.alt
				continue
			}
			next, final, rest, done := applyCont(sub, stack)
			if done {
				return final, nil
			}
			n, stack = next, rest
		}
	}
}

// run drives a node to completion, catching resumable bounces and resuming
// them with a fresh frame budget. nodeOrElse recurses into run for its left
// alternative — that recursion is bounded by orElse *nesting* depth, not by
// flatMap chain length, so it does not undermine the O(1)-per-flatMap
// guarantee the trampoline exists to provide.
func run(ctx *execCtx, n *node) texit {
	var stack []contFrame
	for {
		t, res := driveChunk(ctx, n, stack)
		if res == nil {
			return t
		}
		ctx.frameCounter = 0
		n = res.node
		stack = res.stack
	}
}
