// Package control reads files made of "Key: value" paragraphs separated by
// blank lines, as used by dpkg status, vcpkg status and apk installed
// databases.
package control

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

const maxLine = 1 << 20

// Paragraph maps field names to values. Continuation lines are joined to
// their field with a newline.
type Paragraph map[string]string

// Paragraphs yields the paragraphs of r in order. Reading stops at the
// first I/O error, which the returned function reports.
func Paragraphs(r io.Reader) (iter.Seq[Paragraph], func() error) {
	var scanErr error
	seq := func(yield func(Paragraph) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		p := Paragraph{}
		last := ""
		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				if len(p) > 0 && !yield(p) {
					return
				}
				p, last = Paragraph{}, ""
				continue
			}
			if (line[0] == ' ' || line[0] == '\t') && last != "" {
				p[last] += "\n" + strings.TrimSpace(line)
				continue
			}
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			last = strings.TrimSpace(key)
			p[last] = strings.TrimSpace(value)
		}
		scanErr = sc.Err()
		if len(p) > 0 {
			yield(p)
		}
	}
	return seq, func() error { return scanErr }
}

// List splits a comma-separated relationship field such as Depends into
// package names, dropping version constraints and alternatives after the
// first.
func List(field string) []string {
	var out []string
	for item := range strings.SplitSeq(field, ",") {
		item, _, _ = strings.Cut(item, "|")
		item = strings.TrimSpace(item)
		if i := strings.IndexAny(item, " (["); i >= 0 {
			item = item[:i]
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
