// Package kheap implements the kernel heap: variable-size byte allocations
// served from a dedicated virtual address range that grows on demand, one
// page at a time, from the frame allocator through the virtual memory
// mapper.
//
// The heap is a single address-ordered, singly-linked list of blocks. Each
// block is a header followed by its payload; allocation is first-fit with
// 16-byte payload alignment and freed neighbors are coalesced.
package kheap

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel"
	"github.com/itisrazza/ClankerOS/kernel/mem"
	"github.com/itisrazza/ClankerOS/kernel/mem/pmm"
	"github.com/itisrazza/ClankerOS/kernel/mem/vmm"
)

const (
	defaultHeapStart = uintptr(0x00500000)
	defaultHeapMax   = uintptr(0x10000000)
	initialSize      = uintptr(0x00100000)

	// blockAlign is the payload alignment.
	blockAlign = uintptr(16)

	// headerSize is the space reserved in front of each payload. The
	// header struct is smaller but is padded to the payload alignment so
	// that block starts and payloads stay 16-byte aligned together.
	headerSize = blockAlign

	// minGrowPages is the minimum number of pages added per expansion.
	minGrowPages = uintptr(4)
)

// blockHeader sits immediately in front of each payload. Blocks form a
// singly-linked list in ascending address order across the heap region.
type blockHeader struct {
	// size is the payload size in bytes, excluding the header.
	size uintptr

	// free marks the block as available for allocation.
	free bool

	// next links to the block at the next higher address, or nil for the
	// last block.
	next *blockHeader
}

var (
	heapStart = defaultHeapStart
	heapMax   = defaultHeapMax

	heapEnd    uintptr
	firstBlock *blockHeader

	totalSize uintptr
	usedSize  uintptr
	freeSize  uintptr

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	allocFrameFn = pmm.AllocFrame
	freeFrameFn  = pmm.FreeFrame
	mapFn        = vmm.Map

	errHeapInit = &kernel.Error{Module: "kheap", Message: "failed to map the initial heap region"}
)

// Init maps the initial heap region and sets up the block list.
func Init() *kernel.Error {
	heapEnd = heapStart
	firstBlock = nil
	totalSize, usedSize, freeSize = 0, 0, 0

	if !expand(initialSize) {
		return errHeapInit
	}

	return nil
}

// Alloc reserves size bytes from the heap and returns the payload address,
// or 0 when size is zero or the heap is exhausted.
func Alloc(size uintptr) uintptr {
	if size == 0 {
		return 0
	}

	size = alignUp(size, blockAlign)

	for block := firstBlock; block != nil; block = block.next {
		if !block.free || block.size < size {
			continue
		}

		// Split the block if the surplus can hold another header plus
		// a minimum payload.
		if block.size >= size+headerSize+blockAlign {
			newBlock := (*blockHeader)(unsafe.Pointer(blockAddr(block) + headerSize + size))
			newBlock.size = block.size - size - headerSize
			newBlock.free = true
			newBlock.next = block.next

			block.size = size
			block.next = newBlock

			freeSize -= size + headerSize
		} else {
			freeSize -= block.size
		}

		block.free = false
		usedSize += block.size

		return blockAddr(block) + headerSize
	}

	// No suitable block; grow the heap and retry.
	growSize := alignUp(size+headerSize, uintptr(mem.PageSize))
	if minGrow := minGrowPages * uintptr(mem.PageSize); growSize < minGrow {
		growSize = minGrow
	}

	if !expand(growSize) {
		return 0
	}

	return Alloc(size)
}

// Free releases a previously allocated payload and merges adjacent free
// blocks. Freeing the zero address is a no-op.
func Free(ptr uintptr) {
	if ptr == 0 {
		return
	}

	block := (*blockHeader)(unsafe.Pointer(ptr - headerSize))
	block.free = true
	usedSize -= block.size
	freeSize += block.size

	coalesce()
}

// Realloc resizes an allocation: a zero source behaves like Alloc, a zero
// size behaves like Free, and a block that already fits is returned
// unchanged. Otherwise the payload is copied into a fresh allocation and the
// old block is released.
func Realloc(ptr uintptr, size uintptr) uintptr {
	if ptr == 0 {
		return Alloc(size)
	}
	if size == 0 {
		Free(ptr)
		return 0
	}

	block := (*blockHeader)(unsafe.Pointer(ptr - headerSize))
	if block.size >= size {
		return ptr
	}

	newPtr := Alloc(size)
	if newPtr == 0 {
		return 0
	}

	copySize := block.size
	if size < copySize {
		copySize = size
	}
	kernel.Memcopy(ptr, newPtr, copySize)

	Free(ptr)

	return newPtr
}

// Stats returns the total, used and free byte counts. The total grows only
// with heap expansion; header bytes are accounted to neither used nor free.
func Stats() (total, used, free mem.Size) {
	return mem.Size(totalSize), mem.Size(usedSize), mem.Size(freeSize)
}

// expand grows the heap by at least increment bytes, rounded up to a page
// boundary. Each new page is backed by a fresh frame mapped writable; if a
// mapping fails the frame backing it is returned to the allocator and the
// growth fails. The grown region is appended to the block list as a separate
// free block; the coalesce pass merges it with a free predecessor later.
func expand(increment uintptr) bool {
	increment = alignUp(increment, uintptr(mem.PageSize))

	if heapEnd+increment > heapMax {
		return false
	}

	for addr := heapEnd; addr < heapEnd+increment; addr += uintptr(mem.PageSize) {
		physPage := allocFrameFn()
		if physPage == 0 {
			return false
		}

		if err := mapFn(addr, physPage, vmm.FlagPresent|vmm.FlagRW); err != nil {
			freeFrameFn(physPage)
			return false
		}
	}

	newBlock := (*blockHeader)(unsafe.Pointer(heapEnd))
	newBlock.size = increment - headerSize
	newBlock.free = true
	newBlock.next = nil

	if firstBlock == nil {
		firstBlock = newBlock
	} else {
		last := firstBlock
		for last.next != nil {
			last = last.next
		}
		last.next = newBlock
	}

	heapEnd += increment
	totalSize += increment - headerSize
	freeSize += increment - headerSize

	return true
}

// coalesce performs one pass of adjacent-pair merging over the block list:
// two neighbors are merged iff both are free and physically contiguous. The
// absorbed header becomes free payload and is credited to the free count.
func coalesce() {
	for block := firstBlock; block != nil && block.next != nil; {
		next := block.next

		if block.free && next.free && blockEnd(block) == blockAddr(next) {
			block.size += headerSize + next.size
			block.next = next.next
			freeSize += headerSize
			continue
		}

		block = next
	}
}

func blockAddr(block *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(block))
}

func blockEnd(block *blockHeader) uintptr {
	return blockAddr(block) + headerSize + block.size
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
