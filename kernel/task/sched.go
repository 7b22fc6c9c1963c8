package task

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel"
	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/mem/kheap"
	"github.com/itisrazza/ClankerOS/kernel/mem/vmm"
	"github.com/itisrazza/ClankerOS/kernel/sync"
)

var (
	currentTask *Task

	queueHead *Task
	queueTail *Task

	nextID           = uint32(1)
	schedulerEnabled bool

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	allocFn            = kheap.Alloc
	freeFn             = kheap.Free
	activeDirectoryFn  = vmm.ActiveDirectory
	switchDirectoryFn  = vmm.SwitchDirectory
	waitForInterruptFn = cpu.WaitForInterrupt
	criticalFn         = sync.WithInterruptsDisabled

	errNoTCBSpace = &kernel.Error{Module: "task", Message: "out of memory allocating task control block"}
)

// Init constructs the idle task describing the current execution context.
// The idle task keeps identifier 0, stays on the boot stack and runs under
// the kernel page directory.
func Init() *kernel.Error {
	tcbAddr := allocFn(unsafe.Sizeof(Task{}))
	if tcbAddr == 0 {
		return errNoTCBSpace
	}

	idle := (*Task)(unsafe.Pointer(tcbAddr))
	*idle = Task{
		ID:            0,
		State:         StateRunning,
		Mode:          ModeKernel,
		PageDirectory: activeDirectoryFn(),
		KernelStack:   0, // the boot stack
		Timeslice:     defaultTimeslice,
	}
	idle.setName("idle")

	currentTask = idle
	queueHead, queueTail = nil, nil

	return nil
}

// Current returns the task that owns the CPU.
func Current() *Task {
	return currentTask
}

// EnableScheduler arms the scheduler: from the next timer tick on, Schedule
// actually switches contexts. Interrupts must be enabled by the caller for
// ticks to arrive.
func EnableScheduler() {
	schedulerEnabled = true
}

// Create allocates a task that will execute entry on its own 8K kernel
// stack and links it into the ready queue. The entry function must be a
// top-level function, not a closure. Create returns nil when the heap is
// exhausted.
func Create(name string, entry func()) *Task {
	tcbAddr := allocFn(unsafe.Sizeof(Task{}))
	if tcbAddr == 0 {
		return nil
	}

	t := (*Task)(unsafe.Pointer(tcbAddr))
	*t = Task{
		ID:            nextID,
		State:         StateReady,
		Mode:          ModeKernel,
		PageDirectory: activeDirectoryFn(),
		Timeslice:     defaultTimeslice,
	}
	nextID++
	t.setName(name)

	stack := allocFn(kernelStackSize)
	if stack == 0 {
		freeFn(tcbAddr)
		return nil
	}
	t.KernelStack = stack

	// Build a synthetic interrupt frame at the top of the new stack. When
	// the common stub unwinds through it, execution resumes at the
	// trampoline with the entry address as the only word left on the
	// stack.
	sp := stack + kernelStackSize
	push := func(val uint32) {
		sp -= 4
		*(*uint32)(unsafe.Pointer(sp)) = val
	}

	push(funcPC(entry))        // retrieved by the trampoline
	push(initialEFlags)        // EFLAGS
	push(kernelCodeSelector)   // CS
	push(trampolinePC())       // EIP
	push(0)                    // error code
	push(0)                    // vector number
	for i := 0; i < 8; i++ {   // pusha block, all registers zero
		push(0)
	}
	push(kernelDataSelector)   // DS

	// Mirror the frame in the saved context so the first scheduling
	// decision installs it verbatim.
	t.Context = Context{
		ESP:    uint32(sp),
		EIP:    trampolinePC(),
		CS:     kernelCodeSelector,
		EFlags: initialEFlags,
		DS:     kernelDataSelector,
		ES:     kernelDataSelector,
		FS:     kernelDataSelector,
		GS:     kernelDataSelector,
		SS:     kernelDataSelector,
	}

	// The ready queue is shared with the timer interrupt.
	criticalFn(func() {
		enqueue(t)
	})

	return t
}

// Destroy returns a task's kernel stack and control block to the heap. The
// task must not be linked into the ready queue.
func Destroy(t *Task) {
	if t == nil {
		return
	}

	if t.KernelStack != 0 {
		freeFn(t.KernelStack)
	}
	freeFn(uintptr(unsafe.Pointer(t)))
}

// Schedule is the timer's tick sink. It saves the interrupted context into
// the current task, rotates the ready queue and installs the next task's
// context into the frame; the interrupt return then resumes the new task.
func Schedule(frame *irq.Frame) {
	if !schedulerEnabled || currentTask == nil {
		return
	}

	if currentTask.State == StateRunning {
		saveContext(currentTask, frame)
		currentTask.State = StateReady
		currentTask.Timeslice--
		if currentTask.Timeslice == 0 {
			currentTask.Timeslice = defaultTimeslice
		}
		enqueue(currentTask)
	}
	// A terminated task is neither saved nor re-queued; its TCB stays
	// around until someone destroys it.

	next := dequeue()
	if next == nil {
		currentTask.State = StateRunning
		return
	}

	prev := currentTask
	currentTask = next
	currentTask.State = StateRunning
	currentTask.Timeslice = defaultTimeslice

	if prev.PageDirectory != currentTask.PageDirectory {
		switchDirectoryFn(currentTask.PageDirectory)
	}

	restoreContext(currentTask, frame)
}

// Yield gives up the CPU until the next timer tick.
func Yield() {
	if !schedulerEnabled {
		return
	}

	waitForInterruptFn()
}

// Block marks the current task Blocked and yields. The task is skipped by
// the scheduler until someone calls Unblock on it.
func Block() {
	if !schedulerEnabled || currentTask == nil {
		return
	}

	currentTask.State = StateBlocked
	Yield()
}

// Unblock moves a Blocked task back to Ready and links it into the ready
// queue. Calling Unblock on a task in any other state is a no-op.
func Unblock(t *Task) {
	if t == nil || t.State != StateBlocked {
		return
	}

	criticalFn(func() {
		t.State = StateReady
		enqueue(t)
	})
}

// Exit terminates the current task. The task keeps halting with interrupts
// enabled until the next timer tick evicts it for good. Exit never returns.
func Exit() {
	if currentTask == nil {
		return
	}

	currentTask.State = StateTerminated

	for {
		waitForInterruptFn()
	}
}

// saveContext copies the interrupted CPU state from the frame into the
// task's saved context.
func saveContext(t *Task, frame *irq.Frame) {
	t.Context.EDI = frame.EDI
	t.Context.ESI = frame.ESI
	t.Context.EBP = frame.EBP
	t.Context.ESP = frame.ESP
	t.Context.EBX = frame.EBX
	t.Context.EDX = frame.EDX
	t.Context.ECX = frame.ECX
	t.Context.EAX = frame.EAX

	t.Context.DS = frame.DS
	t.Context.ES = frame.DS
	t.Context.FS = frame.DS
	t.Context.GS = frame.DS

	t.Context.EIP = frame.EIP
	t.Context.CS = frame.CS
	t.Context.EFlags = frame.EFlags

	t.Context.UserESP = frame.UserESP
	t.Context.SS = frame.SS
}

// restoreContext copies a task's saved context into the interrupt frame.
// Only the frame fields the common stub reloads are written; the stub's own
// stack pointer is untouched, so a fresh task starts on the stack its
// synthetic frame was built on.
func restoreContext(t *Task, frame *irq.Frame) {
	frame.EDI = t.Context.EDI
	frame.ESI = t.Context.ESI
	frame.EBP = t.Context.EBP
	frame.ESP = t.Context.ESP
	frame.EBX = t.Context.EBX
	frame.EDX = t.Context.EDX
	frame.ECX = t.Context.ECX
	frame.EAX = t.Context.EAX

	frame.DS = t.Context.DS

	frame.EIP = t.Context.EIP
	frame.CS = t.Context.CS
	frame.EFlags = t.Context.EFlags

	frame.UserESP = t.Context.UserESP
	frame.SS = t.Context.SS
}

func enqueue(t *Task) {
	t.next = nil

	if queueHead == nil {
		queueHead = t
		queueTail = t
		return
	}

	queueTail.next = t
	queueTail = t
}

func dequeue() *Task {
	if queueHead == nil {
		return nil
	}

	t := queueHead
	queueHead = t.next
	if queueHead == nil {
		queueTail = nil
	}

	t.next = nil
	return t
}
