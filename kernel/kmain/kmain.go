package kmain

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/driver/pit"
	"github.com/itisrazza/ClankerOS/kernel/driver/serial"
	"github.com/itisrazza/ClankerOS/kernel/driver/video/console"
	"github.com/itisrazza/ClankerOS/kernel/hal/cmdline"
	"github.com/itisrazza/ClankerOS/kernel/hal/multiboot"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/kfmt"
	"github.com/itisrazza/ClankerOS/kernel/kpanic"
	"github.com/itisrazza/ClankerOS/kernel/mem"
	"github.com/itisrazza/ClankerOS/kernel/mem/kheap"
	"github.com/itisrazza/ClankerOS/kernel/mem/pmm"
	"github.com/itisrazza/ClankerOS/kernel/mem/vmm"
	"github.com/itisrazza/ClankerOS/kernel/task"
)

// timerFrequency is the tick rate the scheduler runs at.
const timerFrequency = 100

var (
	activeConsole console.Vga
	serialSink    serial.Writer
	logSink       kfmt.TeeWriter

	// pageFaultSink keeps the testpagefault read from being optimized
	// away.
	pageFaultSink uint32
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. The rt0 code sets up the descriptor tables and a 16K
// boot stack, then transfers here with the multiboot magic and info pointer
// provided by the bootloader plus the physical bounds of the loaded kernel
// image.
//
// Kmain initializes the subsystems in dependency order, spawns the demo
// tasks and becomes the idle task. It never returns.
//
//go:noinline
func Kmain(magic uint32, infoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(infoPtr)

	activeConsole.Init()
	kfmt.SetOutputSink(&activeConsole)
	kpanic.SetOutputs(&activeConsole, &serialSink)

	kfmt.Printf("ClankerOS v0.1.0\n")

	if magic != multiboot.BootloaderMagic {
		kpanic.Panic("kernel/kmain/kmain.go", 55, "invalid multiboot magic 0x%08x", magic)
	}

	cmdline.Init(multiboot.CmdLine())

	if cmdline.HasFlag("earlycon") {
		serial.Init()
		logSink = kfmt.TeeWriter{A: &activeConsole, B: &serialSink}
		kfmt.SetOutputSink(&logSink)
		kfmt.Printf("[kmain] serial console enabled\n")
	}

	irq.Init()
	kpanic.InstallExceptionHandlers()

	pmm.Init(kernelStart, kernelEnd)
	kfmt.Printf("[pmm] memory: %u KB total, %u KB free\n",
		uint32(pmm.TotalMemory()/mem.Kb), uint32(pmm.FreeMemory()/mem.Kb))

	if err := vmm.Init(); err != nil {
		kpanic.Panic("kernel/kmain/kmain.go", 75, "vmm init failed: %s", err.Message)
	}
	kfmt.Printf("[vmm] paging enabled, directory at 0x%08x\n", uint32(vmm.ActiveDirectory()))

	if err := kheap.Init(); err != nil {
		kpanic.Panic("kernel/kmain/kmain.go", 80, "heap init failed: %s", err.Message)
	}

	if err := task.Init(); err != nil {
		kpanic.Panic("kernel/kmain/kmain.go", 84, "task init failed: %s", err.Message)
	}

	actualHz := pit.Init(timerFrequency)
	kfmt.Printf("[pit] timer programmed at %u Hz\n", actualHz)

	if cmdline.HasFlag("boottest") {
		runBootTests()
	}

	if cmdline.HasFlag("testpanic") {
		kpanic.Panic("kernel/kmain/kmain.go", 95, "Test panic - this is intentional (value: %d)", 42)
	}

	if cmdline.HasFlag("testpagefault") {
		kfmt.Printf("[kmain] reading from 0x%08x\n", uint32(0xDEADBEEF))
		pageFaultSink = *(*uint32)(unsafe.Pointer(uintptr(0xDEADBEEF)))
	}

	spawnDemoTasks()

	pit.SetTickHandler(task.Schedule)
	task.EnableScheduler()
	cpu.EnableInterrupts()

	// The boot context is now the idle task; every context switch from
	// here on happens inside the timer interrupt.
	for {
		cpu.WaitForInterrupt()
	}
}
