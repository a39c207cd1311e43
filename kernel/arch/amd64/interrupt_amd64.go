package amd64

import "kernos/kernel/gate"

// LoadInterruptFrame fills c with the state of the thread interrupted by the
// exception or IRQ that produced regs. The FPU state still belongs to the
// interrupted thread and is captured as well.
func (c *Context) LoadInterruptFrame(regs *gate.Registers) {
	c.Regs = Registers{
		RAX:    regs.RAX,
		RDX:    regs.RDX,
		RCX:    regs.RCX,
		RBX:    regs.RBX,
		RBP:    regs.RBP,
		RSI:    regs.RSI,
		RDI:    regs.RDI,
		R8:     regs.R8,
		R9:     regs.R9,
		R10:    regs.R10,
		R11:    regs.R11,
		R12:    regs.R12,
		R13:    regs.R13,
		R14:    regs.R14,
		R15:    regs.R15,
		SS:     regs.SS,
		RSP:    regs.RSP,
		RFlags: regs.RFlags,
		CS:     regs.CS,
		RIP:    regs.RIP,
	}
	fxSaveFn(&c.fxSave)
}
