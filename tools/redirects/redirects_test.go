package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestModulePath(t *testing.T) {
	specs := []struct {
		gomod  string
		exp    string
		expErr bool
	}{
		{"module kernos\n\ngo 1.21\n", "kernos", false},
		{"// comment\nmodule \"example.com/os\"\n", "example.com/os", false},
		{"go 1.21\n", "", true},
	}

	for specIndex, spec := range specs {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "go.mod"), spec.gomod)

		got, err := modulePath(root)
		if spec.expErr {
			if err == nil {
				t.Errorf("[spec %d] expected an error", specIndex)
			}
			continue
		}
		if err != nil || got != spec.exp {
			t.Errorf("[spec %d] expected module %q; got %q (%v)", specIndex, spec.exp, got, err)
		}
	}

	if _, err := modulePath(t.TempDir()); err == nil {
		t.Error("expected an error for a missing go.mod")
	}
}

func TestFindRedirects(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kernel", "goruntime", "bootstrap.go"), `package goruntime

// sysAllocOS replaces the runtime allocator.
//
//go:redirect-from runtime.sysAllocOS
//go:nosplit
func sysAllocOS(n uintptr) uintptr { return 0 }

//go:redirect-from runtime.nanotime1
func nanotime1() int64 { return 0 }

func helper() {}
`)
	writeFile(t, filepath.Join(root, "kernel", "goruntime", "bootstrap_test.go"), `package goruntime

//go:redirect-from runtime.ignored
func ignored() {}
`)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err = os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	goFiles, err := collectGoFiles("kernel")
	if err != nil {
		t.Fatal(err)
	}
	if exp := []string{filepath.Join("kernel", "goruntime", "bootstrap.go")}; !reflect.DeepEqual(goFiles, exp) {
		t.Fatalf("expected test files to be skipped; got %v", goFiles)
	}

	redirects, err := findRedirects("kernos", goFiles)
	if err != nil {
		t.Fatal(err)
	}

	exp := []*redirect{
		{src: "runtime.sysAllocOS", dst: "kernos/kernel/goruntime.sysAllocOS"},
		{src: "runtime.nanotime1", dst: "kernos/kernel/goruntime.nanotime1"},
	}
	if !reflect.DeepEqual(redirects, exp) {
		t.Fatalf("unexpected redirects: %+v", redirects)
	}

	t.Run("malformed", func(t *testing.T) {
		writeFile(t, filepath.Join("kernel", "bad.go"), `package kernel

//go:redirect-from
func bad() {}
`)
		if _, err := findRedirects("kernos", []string{filepath.Join("kernel", "bad.go")}); err == nil {
			t.Fatal("expected an error for a directive without a target")
		}
	})
}

func TestWriteRedirectTable(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "img")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err = f.Write(make([]byte, 64)); err != nil {
		t.Fatal(err)
	}

	redirects := []*redirect{
		{srcVMA: 0x1000, dstVMA: 0x2000},
		{srcVMA: 0x3000, dstVMA: 0x4000},
	}
	if err = writeRedirectTable(f, 16, redirects); err != nil {
		t.Fatal(err)
	}

	img, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}

	exp := []uint64{0, 0, 0x1000, 0x2000, 0x3000, 0x4000, 0, 0}
	for i, want := range exp {
		if got := binary.LittleEndian.Uint64(img[i*8:]); got != want {
			t.Errorf("[word %d] expected 0x%x; got 0x%x", i, want, got)
		}
	}
}
