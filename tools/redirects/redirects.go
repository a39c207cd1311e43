// Command redirects fills the .goredirectstbl section of a kernel image with
// the addresses of the runtime functions marked for replacement by a
// go:redirect-from comment and the addresses of their replacements. The boot
// code walks the table and patches each runtime function with a jump.
//
// Usage, from the module root:
//
//	redirects count
//	redirects populate-table <kernel image>
package main

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	redirectDirective = "//go:redirect-from"
	redirectSection   = ".goredirectstbl"
)

var errNoModule = errors.New("go.mod does not declare a module path")

type redirect struct {
	src string
	dst string

	srcVMA uint64
	dstVMA uint64
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[redirects] error: %s\n", err.Error())
	os.Exit(1)
}

// modulePath returns the module path declared in the go.mod file at root.
func modulePath(root string) (string, error) {
	f, err := os.Open(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "module" {
			return strings.Trim(fields[1], `"`), nil
		}
	}
	if err = scanner.Err(); err != nil {
		return "", err
	}
	return "", errNoModule
}

func collectGoFiles(root string) ([]string, error) {
	var goFiles []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return goFiles, nil
}

// findRedirects parses goFiles, whose paths are relative to the module root,
// and returns one redirect per go:redirect-from comment attached to a
// function declaration.
func findRedirects(module string, goFiles []string) ([]*redirect, error) {
	var redirects []*redirect

	for _, goFile := range goFiles {
		fset := token.NewFileSet()

		f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", goFile, err)
		}

		pkgPath := path.Join(module, filepath.ToSlash(filepath.Dir(goFile)))
		for _, decl := range f.Decls {
			fnDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fnDecl.Doc == nil {
				continue
			}

			for _, comment := range fnDecl.Doc.List {
				if !strings.HasPrefix(comment.Text, redirectDirective) {
					continue
				}

				fqName := pkgPath + "." + fnDecl.Name.Name
				fields := strings.Fields(comment.Text)
				if len(fields) != 2 || fields[0] != redirectDirective {
					return nil, fmt.Errorf("malformed go:redirect-from syntax for %q", fqName)
				}

				redirects = append(redirects, &redirect{
					src: fields[1],
					dst: fqName,
				})
			}
		}
	}

	return redirects, nil
}

func elfRedirectTableOffset(f *elf.File) (uint64, error) {
	section := f.Section(redirectSection)
	if section == nil {
		return 0, fmt.Errorf("missing %s section", redirectSection)
	}

	return section.Offset, nil
}

func elfResolveRedirectSymbols(redirects []*redirect, f *elf.File) error {
	symbols, err := f.Symbols()
	if err != nil {
		return err
	}

	addr := make(map[string]uint64, len(symbols))
	for _, symbol := range symbols {
		addr[symbol.Name] = symbol.Value
	}

	for _, redirect := range redirects {
		redirect.srcVMA, redirect.dstVMA = addr[redirect.src], addr[redirect.dst]

		switch {
		case redirect.srcVMA == 0:
			return fmt.Errorf("could not locate address of %q", redirect.src)
		case redirect.dstVMA == 0:
			return fmt.Errorf("could not locate address of %q", redirect.dst)
		}
	}

	return nil
}

// writeRedirectTable writes the (src, dst) address pairs at offset.
func writeRedirectTable(w io.WriterAt, offset uint64, redirects []*redirect) error {
	buf := make([]byte, 0, 16*len(redirects))
	for _, redirect := range redirects {
		buf = binary.LittleEndian.AppendUint64(buf, redirect.srcVMA)
		buf = binary.LittleEndian.AppendUint64(buf, redirect.dstVMA)
	}

	_, err := w.WriteAt(buf, int64(offset))
	return err
}

func populateTable(redirects []*redirect, imgFile string) error {
	img, err := elf.Open(imgFile)
	if err != nil {
		return err
	}

	offset, err := elfRedirectTableOffset(img)
	if err == nil {
		err = elfResolveRedirectSymbols(redirects, img)
	}
	img.Close()
	if err != nil {
		return fmt.Errorf("%s: %s", imgFile, err)
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	return writeRedirectTable(f, offset, redirects)
}

func main() {
	flag.Parse()

	module, err := modulePath(".")
	if err != nil {
		exit(fmt.Errorf("this tool must be run from the module root: %s", err))
	}

	var imgFile string
	switch flag.Arg(0) {
	case "count":
	case "populate-table":
		if flag.NArg() != 2 {
			exit(errors.New("populate-table requires the path to the kernel image as an argument"))
		}
		imgFile = flag.Arg(1)
	case "":
		exit(errors.New("missing command"))
	default:
		exit(fmt.Errorf("unknown command %q", flag.Arg(0)))
	}

	goFiles, err := collectGoFiles("kernel")
	if err != nil {
		exit(err)
	}

	redirects, err := findRedirects(module, goFiles)
	if err != nil {
		exit(err)
	}

	if imgFile == "" {
		fmt.Printf("%d", len(redirects))
		return
	}

	if err = populateTable(redirects, imgFile); err != nil {
		exit(err)
	}
}
