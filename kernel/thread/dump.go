package thread

import (
	"io"

	"antiglory/kernel/irq"
	"antiglory/kernel/kfmt"
)

// Dump writes the contents of the run queue, followed by any blocked or
// exited threads, to w.
func (s *Scheduler) Dump(w io.Writer) {
	state := irq.Disable()
	defer irq.Restore(state)

	if s.rq.empty() {
		kfmt.Fprintf(w, "[runqueue] <empty>\n")
	} else {
		head := &s.table[s.rq.head]
		kfmt.Fprintf(w, "[runqueue] head=%d (thread %d)\n", s.rq.head, int32(head.id))

		index := 0
		s.rq.visit(func(slot int) {
			t := &s.table[slot]
			next := &s.table[t.next]
			kfmt.Fprintf(w, "  #%d  id=%d  state=%s  sp=0x%x  stack=0x%x..0x%x  name=\"%s\" next=\"%s\"\n",
				index, int32(t.id), t.state.String(), t.ctx.sp,
				t.stack, t.stack+uintptr(StackSize),
				t.name[:t.nameLen], next.name[:next.nameLen],
			)
			index++
		})
	}

	for slot := range s.table {
		t := &s.table[slot]
		if t.state != Blocked && t.state != Zombie {
			continue
		}

		kfmt.Fprintf(w, "[threads] id=%d  state=%s  name=\"%s\"", int32(t.id), t.state.String(), t.name[:t.nameLen])
		if t.state == Zombie {
			kfmt.Fprintf(w, "  exit=%d", t.exitCode)
		}
		kfmt.Fprintf(w, "\n")
	}
}
