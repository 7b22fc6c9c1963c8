package kmain

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel/kfmt"
	"github.com/itisrazza/ClankerOS/kernel/kpanic"
	"github.com/itisrazza/ClankerOS/kernel/mem/kheap"
	"github.com/itisrazza/ClankerOS/kernel/mem/pmm"
	"github.com/itisrazza/ClankerOS/kernel/mem/vmm"
)

// runBootTests exercises the allocator, the identity mapping and the heap
// right after initialization. A failure panics; there is no point booting
// further on broken memory management.
func runBootTests() {
	kfmt.Printf("[boottest] running boot self-tests\n")

	testFrameAllocator()
	testIdentityMapping()
	testHeap()

	kfmt.Printf("[boottest] all self-tests passed\n")
}

// testFrameAllocator checks the free-then-reuse guarantee of the first-fit
// bitmap scan.
func testFrameAllocator() {
	frameA := pmm.AllocFrame()
	frameB := pmm.AllocFrame()
	frameC := pmm.AllocFrame()

	if frameA == 0 || frameB == 0 || frameC == 0 {
		kpanic.Panic("kernel/kmain/boottest.go", 34, "boottest: frame allocation failed")
	}
	if frameA == frameB || frameB == frameC {
		kpanic.Panic("kernel/kmain/boottest.go", 37, "boottest: allocator returned duplicate frames")
	}

	pmm.FreeFrame(frameB)

	frameD := pmm.AllocFrame()
	if frameD != frameB {
		kpanic.Panic("kernel/kmain/boottest.go", 44,
			"boottest: expected freed frame 0x%x to be reused, got 0x%x", uint32(frameB), uint32(frameD))
	}

	pmm.FreeFrame(frameA)
	pmm.FreeFrame(frameD)
	pmm.FreeFrame(frameC)

	kfmt.Printf("[boottest] frame allocator round-trip ok\n")
}

// testIdentityMapping checks that the boot-time identity map is live.
func testIdentityMapping() {
	if got := vmm.Translate(0x1000); got != 0x1000 {
		kpanic.Panic("kernel/kmain/boottest.go", 58,
			"boottest: expected translate(0x1000) == 0x1000, got 0x%x", uint32(got))
	}

	kfmt.Printf("[boottest] identity-map translation ok\n")
}

// testHeap allocates, writes, frees and reallocates heap blocks.
func testHeap() {
	p1 := kheap.Alloc(32)
	p2 := kheap.Alloc(40)
	p3 := kheap.Alloc(64)

	if p1 == 0 || p2 == 0 || p3 == 0 {
		kpanic.Panic("kernel/kmain/boottest.go", 72, "boottest: heap allocation failed")
	}

	for i := uintptr(0); i < 10; i++ {
		*(*uint32)(unsafe.Pointer(p2 + i*4)) = uint32(i * 10)
	}
	if got := *(*uint32)(unsafe.Pointer(p2 + 5*4)); got != 50 {
		kpanic.Panic("kernel/kmain/boottest.go", 79, "boottest: heap readback expected 50, got %u", got)
	}

	kheap.Free(p2)

	p1 = kheap.Realloc(p1, 128)
	if p1 == 0 {
		kpanic.Panic("kernel/kmain/boottest.go", 86, "boottest: realloc failed")
	}

	kheap.Free(p1)
	kheap.Free(p3)

	kfmt.Printf("[boottest] heap alloc/free/realloc ok\n")
}
