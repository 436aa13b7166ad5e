// Package treecontext renders lines of interest of a source file together
// with the headers of the syntactic scopes that enclose them.
package treecontext

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symnav/internal/lang"
)

// GapMarker is printed once for every run of hidden lines.
const GapMarker = "...⋮..."

// headerMax caps how many lines a scope header may span.
const headerMax = 10

// lineRange is a 0-indexed row span. Header ranges exclude end; node spans
// in New include it.
type lineRange struct {
	start, end int
}

// Context holds a parsed file. It is not safe for concurrent use; callers
// reuse one Context across renders of the same file content.
type Context struct {
	lines    []string
	numLines int

	// scopes[i] holds the start lines of every node spanning line i.
	scopes []map[int]struct{}
	header []lineRange

	lois        map[int]struct{}
	show        map[int]struct{}
	doneParents map[int]struct{}
}

// New parses code with the grammar registered for filename's extension.
// Files in unknown languages get a context without scopes, which shows only
// the lines of interest.
func New(filename string, code []byte) (*Context, error) {
	text := strings.TrimSuffix(string(code), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	c := &Context{
		lines:    lines,
		numLines: len(lines) + 1,
	}
	c.scopes = make([]map[int]struct{}, c.numLines)
	for i := range c.scopes {
		c.scopes[i] = make(map[int]struct{})
	}
	// multi[i] holds the rows spanned by each multi-line node starting on line i.
	multi := make([][]lineRange, c.numLines)

	if l := lang.ForPath(filename); l != nil {
		tree, err := l.NewParser().ParseCtx(context.Background(), nil, code)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filename, err)
		}
		defer tree.Close()

		// The file-level node is never a scope.
		root := tree.RootNode()
		stack := make([]*sitter.Node, 0, 64)
		for i := int(root.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, root.Child(i))
		}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			start := int(node.StartPoint().Row)
			end := int(node.EndPoint().Row)
			if start >= c.numLines {
				continue
			}
			if end >= c.numLines {
				end = c.numLines - 1
			}
			if end > start {
				multi[start] = append(multi[start], lineRange{start, end})
			}
			for i := start; i <= end; i++ {
				c.scopes[i][start] = struct{}{}
			}
			for i := int(node.ChildCount()) - 1; i >= 0; i-- {
				stack = append(stack, node.Child(i))
			}
		}
	}

	c.header = make([]lineRange, c.numLines)
	for i := range c.header {
		c.header[i] = headerFor(i, multi[i])
	}

	return c, nil
}

// headerFor returns the lines shown when line i is an enclosing scope. When
// several multi-line nodes start on the line, the header runs up to (not
// including) the last line of the smallest one, capped at headerMax lines.
func headerFor(i int, nodes []lineRange) lineRange {
	if len(nodes) < 2 {
		return lineRange{i, i + 1}
	}
	smallest := nodes[0]
	for _, n := range nodes[1:] {
		if n.end-n.start < smallest.end-smallest.start {
			smallest = n
		}
	}
	end := smallest.end
	if smallest.end-smallest.start > headerMax {
		end = i + headerMax
	}
	return lineRange{i, end}
}

// NumLines returns the number of lines in the file.
func (c *Context) NumLines() int {
	return len(c.lines)
}

// SetLinesOfInterest replaces the lines of interest with the given 1-indexed
// line numbers.
func (c *Context) SetLinesOfInterest(lines []int) {
	c.lois = make(map[int]struct{}, len(lines))
	for _, n := range lines {
		if n >= 1 {
			c.lois[n-1] = struct{}{}
		}
	}
}

// AddContext computes which lines are shown: the lines of interest, the
// headers of their enclosing scopes (except a scope opening on line 1),
// single-line gaps between shown lines, and a blank line directly after a
// shown line.
func (c *Context) AddContext() {
	c.show = make(map[int]struct{}, len(c.lois))
	c.doneParents = make(map[int]struct{})
	if len(c.lois) == 0 {
		return
	}
	for i := range c.lois {
		c.show[i] = struct{}{}
	}
	for i := range c.lois {
		c.addParentScopes(i)
	}
	c.closeSmallGaps()
}

func (c *Context) addParentScopes(i int) {
	if _, done := c.doneParents[i]; done {
		return
	}
	c.doneParents[i] = struct{}{}
	if i >= len(c.scopes) {
		return
	}
	for start := range c.scopes[i] {
		h := c.header[start]
		// Scopes opening on the first line of the file are never headers.
		if h.start == 0 {
			continue
		}
		for line := h.start; line < h.end; line++ {
			c.show[line] = struct{}{}
		}
	}
}

func (c *Context) closeSmallGaps() {
	sorted := make([]int, 0, len(c.show))
	for i := range c.show {
		sorted = append(sorted, i)
	}
	sort.Ints(sorted)
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i+1]-sorted[i] == 2 {
			c.show[sorted[i]+1] = struct{}{}
		}
	}

	for i := range c.lines {
		if _, ok := c.show[i]; !ok {
			continue
		}
		if strings.TrimSpace(c.lines[i]) != "" && i < c.numLines-2 && strings.TrimSpace(c.lines[i+1]) == "" {
			c.show[i+1] = struct{}{}
		}
	}
}

// Format renders the shown lines with 1-indexed line numbers, printing
// GapMarker in place of each run of hidden lines.
func (c *Context) Format() string {
	if len(c.show) == 0 {
		return ""
	}

	var b strings.Builder
	_, dots := c.show[0]
	dots = !dots
	for i, line := range c.lines {
		if _, ok := c.show[i]; !ok {
			if dots {
				b.WriteString(GapMarker)
				b.WriteByte('\n')
				dots = false
			}
			continue
		}
		fmt.Fprintf(&b, "%3d│%s\n", i+1, line)
		dots = true
	}
	return b.String()
}
