package native

import (
	"kernos/kernel/arch"
	"kernos/kernel/arch/arm64"
)

var backend arch.CPUContext = arm64.Backend{}
