// Package progress prints human-readable backup progress.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	cyan  = color.New(color.FgCyan)
	done  = color.New(color.FgGreen, color.Bold)
)

// Console writes progress lines to out. Colors follow fatih/color's
// terminal detection (disabled when out is not a TTY or NO_COLOR is set).
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	total int
	index int
}

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Header announces the run.
func (c *Console) Header(server, dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bold.Fprintln(c.out, "Starting Qdrant backup")
	fmt.Fprintf(c.out, "  server: %s\n", server)
	fmt.Fprintf(c.out, "  output: %s\n\n", dir)
}

// Found reports how many collections the server listed.
func (c *Console) Found(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = n
	fmt.Fprintf(c.out, "Found %d collection(s).\n\n", n)
}

// Collection starts the block for one collection.
func (c *Console) Collection(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index++
	if c.total > 0 {
		cyan.Fprintf(c.out, "[%d/%d] %s\n", c.index, c.total, name)
		return
	}
	cyan.Fprintf(c.out, "%s\n", name)
}

// Begin marks the start of a network step.
func (c *Console) Begin(step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "  - %s...\n", step)
}

// End marks a step as done.
func (c *Console) End(step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	green.Fprintf(c.out, "  ✓ %s\n", step)
}

// Saved reports the written file.
func (c *Console) Saved(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	green.Fprintf(c.out, "  ✓ saved %s\n", path)
}

// Complete ends the run.
func (c *Console) Complete(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out)
	done.Fprintf(c.out, "✓ Backup complete (%d collection(s))\n", n)
}
