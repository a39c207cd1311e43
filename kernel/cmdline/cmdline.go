// Package cmdline parses the kernel command line supplied by the bootloader.
package cmdline

import (
	"strconv"
	"strings"
)

// Parse splits the command line into whitespace-separated tokens. Tokens of
// the form key=value are stored as map[key] = value; bare flags are stored as
// map[flag] = flag. When a key appears more than once the last value wins.
func Parse(cmdLine string) map[string]string {
	kv := make(map[string]string)
	for _, pair := range strings.Fields(cmdLine) {
		kvSep := strings.IndexByte(pair, '=')
		if kvSep == -1 {
			kv[pair] = pair
			continue
		}

		kv[pair[:kvSep]] = pair[kvSep+1:]
	}

	return kv
}

// Uint returns the unsigned integer stored under key or def if the key is
// missing or its value cannot be parsed.
func Uint(kv map[string]string, key string, def uint64) uint64 {
	v, ok := kv[key]
	if !ok {
		return def
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return def
	}
	return n
}

// String returns the value stored under key or def if the key is missing.
func String(kv map[string]string, key, def string) string {
	if v, ok := kv[key]; ok {
		return v
	}
	return def
}

// Flag reports whether key was passed as a bare flag.
func Flag(kv map[string]string, key string) bool {
	v, ok := kv[key]
	return ok && v == key
}
