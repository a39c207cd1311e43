package task

const (
	// IdlePriority is reserved for the per-core idle thread.
	IdlePriority uint8 = 0xff

	// PriorityLevels is the number of levels available to each scheduling
	// class.
	PriorityLevels = 40

	kernelPriorityBase = 80
	userPriorityBase   = 100
)

// KernelPriority maps a kernel class level (0 = most urgent) to a priority.
// Levels outside [0, PriorityLevels) are clamped.
func KernelPriority(level uint8) uint8 {
	return kernelPriorityBase + clampLevel(level)
}

// UserPriority maps a user class level (0 = most urgent) to a priority.
// Levels outside [0, PriorityLevels) are clamped.
func UserPriority(level uint8) uint8 {
	return userPriorityBase + clampLevel(level)
}

// NormalKernelPriority is the default priority of kernel threads.
func NormalKernelPriority() uint8 { return KernelPriority(PriorityLevels / 2) }

// NormalUserPriority is the default priority of user threads.
func NormalUserPriority() uint8 { return UserPriority(PriorityLevels / 2) }

func clampLevel(level uint8) uint8 {
	if level >= PriorityLevels {
		return PriorityLevels - 1
	}
	return level
}
