package native

import (
	"kernos/kernel/arch"
	"kernos/kernel/arch/amd64"
)

var backend arch.CPUContext = amd64.Backend{}
