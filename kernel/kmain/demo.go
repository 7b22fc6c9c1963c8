package kmain

import (
	"github.com/itisrazza/ClankerOS/kernel/kfmt"
	"github.com/itisrazza/ClankerOS/kernel/task"
)

const (
	demoIterations = 5
	demoSpinCount  = 4000000
)

// busySink defeats dead-code elimination of the busy-wait loops.
var busySink uint32

// spawnDemoTasks creates three kernel tasks whose interleaved output makes
// the round-robin rotation visible on the console.
func spawnDemoTasks() {
	task.Create("demo1", demoTask1)
	task.Create("demo2", demoTask2)
	task.Create("demo3", demoTask3)
}

// The task entries must be top-level functions: the trampoline calls the
// entry address without a closure context.
func demoTask1() { demoLoop(1) }
func demoTask2() { demoLoop(2) }
func demoTask3() { demoLoop(3) }

func demoLoop(id int) {
	for i := 0; i < demoIterations; i++ {
		kfmt.Printf("[P%d:%d]", id, i)
		busyWait()
	}

	// Returning hands control to the trampoline, which terminates the
	// task.
}

func busyWait() {
	for i := uint32(0); i < demoSpinCount; i++ {
		busySink += i
	}
}
