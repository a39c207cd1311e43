//go:build amd64 || arm64 || riscv64

package native

import (
	"runtime"
	"testing"
)

func TestBackendMatchesTarget(t *testing.T) {
	if got := Backend().Name(); got != runtime.GOARCH {
		t.Fatalf("expected the %s backend; got %s", runtime.GOARCH, got)
	}
}
