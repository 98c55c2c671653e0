package sync

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

// FileStat is one file's outcome with its chunk count.
type FileStat struct {
	Path   string
	Chunks int
}

// FileError is a per-file failure that did not abort the run.
type FileError struct {
	Path   string
	Reason string
}

// Stats is the observable contract of a sync run.
type Stats struct {
	Added     []FileStat
	Modified  []FileStat
	Unchanged []FileStat
	Deleted   []FileStat
	Skipped   []string
	Errors    []FileError
}

// TotalChunks sums the chunk counts of added and modified files.
func (s *Stats) TotalChunks() int {
	n := 0
	for _, f := range s.Added {
		n += f.Chunks
	}
	for _, f := range s.Modified {
		n += f.Chunks
	}
	return n
}

func (s *Stats) sortAll() {
	byPath := func(fs []FileStat) {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Path < fs[j].Path })
	}
	byPath(s.Added)
	byPath(s.Modified)
	byPath(s.Unchanged)
	byPath(s.Deleted)
	sort.Strings(s.Skipped)
	sort.Slice(s.Errors, func(i, j int) bool { return s.Errors[i].Path < s.Errors[j].Path })
}

// Summary renders the run outcome for a terminal. Colors are applied only
// when useColor is set.
func (s *Stats) Summary(w io.Writer, useColor bool) {
	paint := func(c *color.Color, format string, args ...any) string {
		if !useColor {
			return fmt.Sprintf(format, args...)
		}
		return c.Sprintf(format, args...)
	}
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	fmt.Fprintf(w, "Sync complete: %s, %s, %s, %s\n",
		paint(green, "%d added", len(s.Added)),
		paint(yellow, "%d modified", len(s.Modified)),
		paint(faint, "%d unchanged", len(s.Unchanged)),
		paint(red, "%d deleted", len(s.Deleted)))

	for _, f := range s.Added {
		fmt.Fprintf(w, "  %s %s (%d chunks)\n", paint(green, "+"), f.Path, f.Chunks)
	}
	for _, f := range s.Modified {
		fmt.Fprintf(w, "  %s %s (%d chunks)\n", paint(yellow, "~"), f.Path, f.Chunks)
	}
	for _, f := range s.Deleted {
		fmt.Fprintf(w, "  %s %s (%d chunks)\n", paint(red, "-"), f.Path, f.Chunks)
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "  %s\n", paint(faint, "%d skipped", len(s.Skipped)))
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", paint(red, "!"), e.Path, e.Reason)
	}
}
