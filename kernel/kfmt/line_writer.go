package kfmt

import "io"

// lineWriter tags every output line with the module and level of the message
// being logged. A Logger owns one lineWriter and only touches it while
// holding outLock.
type lineWriter struct {
	sink io.Writer

	// tag holds "[module] ".
	tag   []byte
	level Level

	midLine bool
}

// levelTags holds the level part of the line prefix.
var levelTags = [...][]byte{
	LevelDebug: []byte("debug: "),
	LevelInfo:  []byte("info: "),
	LevelWarn:  []byte("warn: "),
	LevelError: []byte("error: "),
}

// reset prepares w for a new message at the given level.
func (w *lineWriter) reset(sink io.Writer, level Level) {
	w.sink, w.level, w.midLine = sink, level, false
}

// Write implements io.Writer. The returned count excludes the injected tags.
func (w *lineWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			w.sink.Write(w.tag)
			w.sink.Write(levelTags[w.level])
			w.midLine = true
		}

		end := len(p)
		for i, b := range p {
			if b == '\n' {
				end = i + 1
				w.midLine = false
				break
			}
		}

		n, err := w.sink.Write(p[:end])
		written += n
		if err != nil {
			return written, err
		}
		p = p[end:]
	}

	return written, nil
}
