// Package pmm implements the physical frame allocator. Every 4K frame of
// RAM reported by the bootloader is tracked by a bitmap placed immediately
// after the kernel image; a set bit means the frame is not available.
package pmm

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel/hal/multiboot"
	"github.com/itisrazza/ClankerOS/kernel/mem"
)

const (
	// lowMemoryEnd marks the end of the region reserved for the BIOS,
	// the VGA frame buffer and other legacy hardware.
	lowMemoryEnd = uintptr(0x100000)

	allBitsSet = uint32(0xFFFFFFFF)
)

// FrameAllocator is the BitmapAllocator instance that serves as the
// system-wide allocator for reserving frames.
var FrameAllocator BitmapAllocator

// BitmapAllocator implements a physical frame allocator that tracks frame
// reservations with one bit per frame. Allocations scan for the first clear
// bit, which makes a freed frame the first candidate for reuse.
type BitmapAllocator struct {
	bitmap []uint32

	totalFrames uint32
	freeFrames  uint32
	usedFrames  uint32
}

// Init sets up the system-wide frame allocator state using the memory
// information provided by the bootloader. The bitmap is placed immediately
// after the kernel image, rounded up to a 4-byte boundary past kernelEnd.
func Init(kernelStart, kernelEnd uintptr) {
	FrameAllocator.init(kernelStart, kernelEnd)
}

// AllocFrame reserves the first available frame and returns its physical
// address, or 0 if no frames are available.
func AllocFrame() uintptr {
	return FrameAllocator.AllocFrame()
}

// FreeFrame releases a previously allocated frame. Addresses that are not
// page-aligned are silently ignored.
func FreeFrame(addr uintptr) {
	FrameAllocator.FreeFrame(addr)
}

// TotalMemory returns the total amount of tracked physical memory.
func TotalMemory() mem.Size {
	return FrameAllocator.TotalMemory()
}

// FreeMemory returns the amount of available physical memory.
func FreeMemory() mem.Size {
	return FrameAllocator.FreeMemory()
}

// UsedMemory returns the amount of reserved physical memory.
func UsedMemory() mem.Size {
	return FrameAllocator.UsedMemory()
}

func (alloc *BitmapAllocator) init(kernelStart, kernelEnd uintptr) {
	alloc.totalFrames = detectTotalFrames()
	if alloc.totalFrames == 0 {
		alloc.bitmap = nil
		alloc.freeFrames = 0
		alloc.usedFrames = 0
		return
	}

	// One bit per frame, packed into uint32 words, placed right after the
	// kernel image aligned to a 4-byte boundary.
	bitmapWords := (alloc.totalFrames + 31) / 32
	bitmapAddr := (kernelEnd + 3) &^ 3
	alloc.bitmap = unsafe.Slice((*uint32)(unsafe.Pointer(bitmapAddr)), bitmapWords)

	// Mark everything as used and release only what the bootloader
	// reports as available.
	for i := range alloc.bitmap {
		alloc.bitmap[i] = allBitsSet
	}
	alloc.usedFrames = alloc.totalFrames
	alloc.freeFrames = 0

	if multiboot.HasMemoryMap() {
		multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
			if region.Type == multiboot.MemAvailable {
				alloc.markRegionFree(uintptr(region.PhysAddress), uintptr(region.Length))
			}
			return true
		})
	} else {
		_, upperKB := multiboot.BasicMemoryInfo()
		alloc.markRegionFree(lowMemoryEnd, uintptr(upperKB)*1024)
	}

	// Reclaim the regions the kernel can never hand out: low memory and
	// the kernel image together with the bitmap itself.
	bitmapEnd := bitmapAddr + uintptr(bitmapWords)*4
	alloc.markRegionUsed(kernelStart, bitmapEnd-kernelStart)
	alloc.markRegionUsed(0, lowMemoryEnd)
}

// detectTotalFrames derives the number of tracked frames from the multiboot
// info: the highest end address of any memory map region, or the basic
// lower/upper memory fields when no memory map is present.
func detectTotalFrames() uint32 {
	if !multiboot.HasMemoryMap() {
		lowerKB, upperKB := multiboot.BasicMemoryInfo()
		return uint32(((uint64(lowerKB) + uint64(upperKB)) * 1024) >> mem.PageShift)
	}

	var highestAddr uint64
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if end := region.PhysAddress + region.Length; end > highestAddr {
			highestAddr = end
		}
		return true
	})

	return uint32(highestAddr >> mem.PageShift)
}

// AllocFrame scans the bitmap for the first clear bit and returns the
// physical address of the corresponding frame, or 0 on exhaustion.
func (alloc *BitmapAllocator) AllocFrame() uintptr {
	for wordIndex, word := range alloc.bitmap {
		if word == allBitsSet {
			continue
		}

		for bit := uint32(0); bit < 32; bit++ {
			frame := uint32(wordIndex)*32 + bit
			if frame >= alloc.totalFrames {
				return 0
			}

			if word&(1<<bit) == 0 {
				alloc.markFrameUsed(frame)
				return uintptr(frame) << mem.PageShift
			}
		}
	}

	return 0
}

// FreeFrame releases the frame holding the given physical address. Addresses
// that are not page-aligned are silently ignored.
func (alloc *BitmapAllocator) FreeFrame(addr uintptr) {
	if addr&(uintptr(mem.PageSize)-1) != 0 {
		return
	}

	alloc.markFrameFree(uint32(addr >> mem.PageShift))
}

// TotalMemory returns the total amount of tracked physical memory.
func (alloc *BitmapAllocator) TotalMemory() mem.Size {
	return mem.Size(alloc.totalFrames) * mem.PageSize
}

// FreeMemory returns the amount of available physical memory.
func (alloc *BitmapAllocator) FreeMemory() mem.Size {
	return mem.Size(alloc.freeFrames) * mem.PageSize
}

// UsedMemory returns the amount of reserved physical memory.
func (alloc *BitmapAllocator) UsedMemory() mem.Size {
	return mem.Size(alloc.usedFrames) * mem.PageSize
}

// markFrameUsed sets the bitmap bit for frame, adjusting the counters only
// when the bit actually transitions.
func (alloc *BitmapAllocator) markFrameUsed(frame uint32) {
	if frame >= alloc.totalFrames {
		return
	}

	wordIndex, mask := frame/32, uint32(1)<<(frame%32)
	if alloc.bitmap[wordIndex]&mask == 0 {
		alloc.bitmap[wordIndex] |= mask
		alloc.usedFrames++
		alloc.freeFrames--
	}
}

// markFrameFree clears the bitmap bit for frame, adjusting the counters only
// when the bit actually transitions.
func (alloc *BitmapAllocator) markFrameFree(frame uint32) {
	if frame >= alloc.totalFrames {
		return
	}

	wordIndex, mask := frame/32, uint32(1)<<(frame%32)
	if alloc.bitmap[wordIndex]&mask != 0 {
		alloc.bitmap[wordIndex] &^= mask
		alloc.freeFrames++
		alloc.usedFrames--
	}
}

func (alloc *BitmapAllocator) markRegionUsed(start, length uintptr) {
	if length == 0 {
		return
	}

	startFrame := uint32(start >> mem.PageShift)
	endFrame := uint32((start + length - 1) >> mem.PageShift)
	for frame := startFrame; frame <= endFrame; frame++ {
		alloc.markFrameUsed(frame)
	}
}

func (alloc *BitmapAllocator) markRegionFree(start, length uintptr) {
	if length == 0 {
		return
	}

	startFrame := uint32(start >> mem.PageShift)
	endFrame := uint32((start + length - 1) >> mem.PageShift)
	for frame := startFrame; frame <= endFrame; frame++ {
		alloc.markFrameFree(frame)
	}
}
