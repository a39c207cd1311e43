package irq

import (
	"kernos/kernel/cpu"
	"testing"
)

func TestX2APICSender(t *testing.T) {
	defer func() { writeMSRFn = cpu.WriteMSR }()

	var (
		gotReg uint32
		gotVal uint64
	)
	writeMSRFn = func(reg uint32, val uint64) {
		gotReg, gotVal = reg, val
	}

	if err := (X2APICSender{Vector: 0xf1}).SendRescheduleIPI(7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotReg != 0x830 {
		t.Errorf("expected ICR MSR 0x830 to be written; got %x", gotReg)
	}

	if exp := uint64(7)<<32 | 1<<14 | 0xf1; gotVal != exp {
		t.Errorf("expected ICR value %x; got %x", exp, gotVal)
	}

	if err := (X2APICSender{Vector: 2}).SendRescheduleIPI(7); err != errBadVector {
		t.Errorf("expected errBadVector for an exception vector; got %v", err)
	}
}
