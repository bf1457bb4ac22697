package thread

import (
	"unsafe"

	"antiglory/kernel/mem"
)

const (
	// stackCanary is written at the lowest address of each thread stack.
	// An overwritten canary means the stack has been overrun.
	stackCanary = uint64(0x57ac4ca7a2e5eed5)

	// frameToken identifies an initial frame built by newContext.
	frameToken = uintptr(0x7a3b011e)

	// stackAlign is the alignment of the stack top.
	stackAlign = 16

	wordSize = unsafe.Sizeof(uintptr(0))
)

// context holds the state needed to suspend and resume one thread. Code
// outside this file treats it as an opaque token.
type context struct {
	// sp is the saved stack cursor into the thread's stack.
	sp uintptr

	stackBase uintptr

	// resume is signaled to hand the CPU to the thread owning the
	// context.
	resume chan struct{}
}

// newContext synthesizes the initial frame of a thread whose stack occupies
// [base, base+size). The frame records the thread's slot so that the
// trampoline can verify it landed on the expected stack when the thread is
// first resumed.
func newContext(base uintptr, size mem.Size, slot int) context {
	*(*uint64)(unsafe.Pointer(base)) = stackCanary

	sp := (base + uintptr(size)) &^ (stackAlign - 1)
	sp -= wordSize
	*(*uintptr)(unsafe.Pointer(sp)) = uintptr(slot)
	sp -= wordSize
	*(*uintptr)(unsafe.Pointer(sp)) = frameToken

	return context{
		sp:        sp,
		stackBase: base,
		resume:    make(chan struct{}),
	}
}

// bootContext returns the context of the code that starts the scheduler. It
// has no stack of its own.
func bootContext() context {
	return context{resume: make(chan struct{})}
}

// popInitialFrame consumes the frame built by newContext and returns the slot
// recorded in it. It returns false if the frame has been overwritten.
func (ctx *context) popInitialFrame() (int, bool) {
	if *(*uintptr)(unsafe.Pointer(ctx.sp)) != frameToken {
		return noSlot, false
	}

	slot := int(*(*uintptr)(unsafe.Pointer(ctx.sp + wordSize)))
	ctx.sp += 2 * wordSize
	return slot, true
}

// intact returns false if the canary at the bottom of the stack has been
// overwritten.
func (ctx *context) intact() bool {
	if ctx.stackBase == 0 {
		return true
	}

	return *(*uint64)(unsafe.Pointer(ctx.stackBase)) == stackCanary
}

// switchTo hands the CPU to the thread owning to and parks the caller until
// from is resumed.
func switchTo(from, to *context) {
	resume := from.resume
	to.resume <- struct{}{}
	<-resume
}

// handoff hands the CPU to the thread owning to. The caller must not touch
// any kernel state afterwards since it no longer owns the CPU.
func handoff(to *context) {
	to.resume <- struct{}{}
}
