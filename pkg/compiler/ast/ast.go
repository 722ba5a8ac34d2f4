// Package ast holds the parse tree for one ntalk compilation unit: an
// arena that owns every node, the node hierarchy the parser builds, and
// the code-generation contract the bytecode backend implements.
package ast

import (
	"fmt"
	"io"
	"strings"
)

// Node is implemented by every element of the parse tree.
type Node interface {
	// Line is the 1-based source line this node was parsed from.
	Line() int
	// DebugPrint writes a stable textual rendering, two spaces per
	// indent level, children bracketed by { and } on their own lines.
	DebugPrint(w io.Writer, indent int)
	// Simplify constant-folds children where trivially possible.
	Simplify()
	// GenerateCode lowers the node into the given code block.
	GenerateCode(cb CodeBlock) error
}

// ValueNode is a node that yields a value when emitted.
type ValueNode interface {
	Node
	valueNode()
}

// Container is a value node that may appear as an assignment
// destination: a variable reference, a global property, or a mutable
// chunk reference.
type Container interface {
	ValueNode
	containerNode()
}

// ChunkType tags the four substring granularities understood by the
// runtime chunk intrinsics.
type ChunkType int

const (
	ChunkInvalid ChunkType = iota
	ChunkCharacter
	ChunkItem
	ChunkLine
	ChunkWord
	// ChunkByte is reserved; the parser does not emit it yet.
	ChunkByte
)

func (c ChunkType) String() string {
	switch c {
	case ChunkCharacter:
		return "character"
	case ChunkItem:
		return "item"
	case ChunkLine:
		return "line"
	case ChunkWord:
		return "word"
	case ChunkByte:
		return "byte"
	}
	return "invalid"
}

// ProgressDelegate observes node creation. NodeAdded is invoked
// synchronously after every node registration; the delegate must not
// mutate the tree.
type ProgressDelegate interface {
	NodeAdded(tree *Tree, node Node, count int)
}

// Tree is the arena that owns every node created during one parse.
// Destruction of the tree (garbage collection of the last reference)
// releases all of them, including orphans never linked into a parent.
type Tree struct {
	nodes    []Node
	roots    []Node
	globals  map[string]*VariableEntry
	progress ProgressDelegate
	tempSeed int
}

// NewTree creates an empty parse tree. progress may be nil.
func NewTree(progress ProgressDelegate) *Tree {
	return &Tree{
		globals:  make(map[string]*VariableEntry),
		progress: progress,
	}
}

// add registers a freshly created node with the arena, assigns its
// creation index and notifies the observer. Every node constructor on
// the tree funnels through here.
func (t *Tree) add(n Node) {
	t.nodes = append(t.nodes, n)
	if t.progress != nil {
		t.progress.NodeAdded(t, n, len(t.nodes))
	}
}

// AddNode registers a top-level node (a handler definition) so that
// Simplify, GenerateCode and DebugPrint visit it in parse order.
func (t *Tree) AddNode(n Node) {
	t.roots = append(t.roots, n)
}

// Nodes returns all nodes in creation order.
func (t *Tree) Nodes() []Node { return t.nodes }

// Roots returns the top-level nodes in parse order.
func (t *Tree) Roots() []Node { return t.roots }

// NodeCount returns the number of nodes owned by the arena.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// Contains reports whether the arena owns the given node.
func (t *Tree) Contains(n Node) bool {
	for _, owned := range t.nodes {
		if owned == n {
			return true
		}
	}
	return false
}

// Globals returns the compilation unit's global variable table.
func (t *Tree) Globals() map[string]*VariableEntry { return t.globals }

// NewTempName generates a unique temporary variable name. The counter
// is per-tree so parallel compilations stay deterministic; "temp" is a
// reserved prefix, so collisions with user variables (which carry the
// var_ prefix) are impossible.
func (t *Tree) NewTempName() string {
	name := fmt.Sprintf("temp%d", t.tempSeed)
	t.tempSeed++
	return name
}

// Simplify runs the local folding pass over all top-level nodes in
// parse order.
func (t *Tree) Simplify() {
	for _, n := range t.roots {
		n.Simplify()
	}
}

// GenerateCode emits all top-level nodes into cb in parse order.
func (t *Tree) GenerateCode(cb CodeBlock) error {
	for _, n := range t.roots {
		if err := n.GenerateCode(cb); err != nil {
			return err
		}
	}
	return nil
}

// DebugPrint renders all top-level nodes.
func (t *Tree) DebugPrint(w io.Writer) {
	for _, n := range t.roots {
		n.DebugPrint(w, 0)
	}
}

func indentChars(indent int) string {
	return strings.Repeat("  ", indent)
}

// simplified runs the folding pass on a child value and returns its
// replacement, which is the child itself unless it folded to a literal.
func simplified(v ValueNode) ValueNode {
	v.Simplify()
	if call, ok := v.(*FunctionCallNode); ok {
		if folded := call.fold(); folded != nil {
			return folded
		}
	}
	return v
}
