package pmm

import (
	"bytes"
	"kernos/kernel/kfmt"
	"kernos/kernel/mm"
	"kernos/multiboot"
	"testing"
)

// testRegions mirrors the memory map reported by qemu for a 128M guest.
var testRegions = []multiboot.MemoryMapEntry{
	{PhysAddress: 0x0, Length: 0x9fc00, Type: multiboot.MemAvailable},
	{PhysAddress: 0x9fc00, Length: 0x400, Type: multiboot.MemReserved},
	{PhysAddress: 0xf0000, Length: 0x10000, Type: multiboot.MemReserved},
	{PhysAddress: 0x100000, Length: 0x7ee0000, Type: multiboot.MemAvailable},
	{PhysAddress: 0x7fe0000, Length: 0x20000, Type: multiboot.MemReserved},
	{PhysAddress: 0xfffc0000, Length: 0x40000, Type: multiboot.MemReserved},
}

func mockRegions(regions []multiboot.MemoryMapEntry) func(func(*multiboot.MemoryMapEntry) bool) {
	return func(visitor func(*multiboot.MemoryMapEntry) bool) {
		for i := range regions {
			entry := regions[i]
			if !visitor(&entry) {
				return
			}
		}
	}
}

func TestBootMemAllocator(t *testing.T) {
	defer func() { visitRegionsFn = multiboot.VisitMemRegions }()
	visitRegionsFn = mockRegions(testRegions)

	specs := []struct {
		kernelStart, kernelEnd uintptr
		expAllocCount          uint64
	}{
		// kernel inside a reserved region; region 0 yields frames [0, 158]
		// and region 3 yields frames [256, 32735]
		{0xa0000, 0xa0000, 159 + 32480},
		// kernel at the start of region 0 spanning 2.5 pages
		{0x0, 0x2800, 159 - 3 + 32480},
		// kernel at the end of region 0 spanning 2.5 pages
		{0x9c800, 0x9f000, 159 - 3 + 32480},
		// kernel covers all of region 0 after rounding
		{0x123, 0x9fc00, 32480},
		// kernel at region 3 start + 2K spanning 1.5 pages
		{0x100800, 0x102000, 159 + 32480 - 2},
	}

	var alloc BootMemAllocator
	for specIndex, spec := range specs {
		alloc.init(spec.kernelStart, spec.kernelEnd)

		var prev mm.Frame
		for {
			frame, err := alloc.AllocFrame()
			if err != nil {
				if err != errOutOfMemory {
					t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
				}
				break
			}

			if frame >= alloc.kernelStartFrame && frame <= alloc.kernelEndFrame {
				t.Errorf("[spec %d] allocated frame %d overlaps the kernel image", specIndex, frame)
				break
			}

			if alloc.allocCount > 1 && frame <= prev {
				t.Errorf("[spec %d] expected frames in ascending order; got %d after %d", specIndex, frame, prev)
				break
			}
			prev = frame
		}

		if got := alloc.AllocCount(); got != spec.expAllocCount {
			t.Errorf("[spec %d] expected allocator to allocate %d frames; allocated %d", specIndex, spec.expAllocCount, got)
		}
	}
}

func TestBootMemAllocatorNoRegions(t *testing.T) {
	defer func() { visitRegionsFn = multiboot.VisitMemRegions }()
	visitRegionsFn = mockRegions(nil)

	var alloc BootMemAllocator
	alloc.init(0, 0x1000)
	if frame, err := alloc.AllocFrame(); err != errOutOfMemory || frame.Valid() {
		t.Fatalf("expected errOutOfMemory and an invalid frame; got %v, %d", err, frame)
	}
}

func TestInit(t *testing.T) {
	defer func() {
		visitRegionsFn = multiboot.VisitMemRegions
		mm.SetFrameAllocator(nil)
		kfmt.SetOutputSink(nil)
	}()
	visitRegionsFn = mockRegions(testRegions)

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	Init(0x100000, 0x200000)

	frame, err := mm.AllocFrame()
	if err != nil {
		t.Fatal(err)
	}
	if exp := mm.Frame(0); frame != exp {
		t.Errorf("expected first frame to be %d; got %d", exp, frame)
	}

	if !bytes.Contains(buf.Bytes(), []byte("available memory: 130559Kb")) {
		t.Errorf("expected memory map summary in output; got %q", buf.String())
	}
}
