package native

import (
	"kernos/kernel/arch"
	"kernos/kernel/arch/riscv64"
)

var backend arch.CPUContext = riscv64.Backend{}
