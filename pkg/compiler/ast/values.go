package ast

import (
	"fmt"
	"io"
	"strconv"
)

// IntValueNode is an integer literal.
type IntValueNode struct {
	tree  *Tree
	line  int
	Value int64
}

// NewIntValue creates an integer literal owned by the tree.
func (t *Tree) NewIntValue(v int64, line int) *IntValueNode {
	n := &IntValueNode{tree: t, line: line, Value: v}
	t.add(n)
	return n
}

func (n *IntValueNode) Line() int { return n.line }
func (n *IntValueNode) valueNode() {}
func (n *IntValueNode) Simplify()  {}

func (n *IntValueNode) DebugPrint(w io.Writer, indent int) {
	fmt.Fprintf(w, "%sint( %d )\n", indentChars(indent), n.Value)
}

func (n *IntValueNode) GenerateCode(cb CodeBlock) error {
	cb.PushInt(n.Value)
	return nil
}

// FloatValueNode is a floating-point literal.
type FloatValueNode struct {
	tree  *Tree
	line  int
	Value float64
}

// NewFloatValue creates a float literal owned by the tree.
func (t *Tree) NewFloatValue(v float64, line int) *FloatValueNode {
	n := &FloatValueNode{tree: t, line: line, Value: v}
	t.add(n)
	return n
}

func (n *FloatValueNode) Line() int { return n.line }
func (n *FloatValueNode) valueNode() {}
func (n *FloatValueNode) Simplify()  {}

func (n *FloatValueNode) DebugPrint(w io.Writer, indent int) {
	fmt.Fprintf(w, "%sfloat( %s )\n", indentChars(indent), strconv.FormatFloat(n.Value, 'g', -1, 64))
}

func (n *FloatValueNode) GenerateCode(cb CodeBlock) error {
	cb.PushFloat(n.Value)
	return nil
}

// BoolValueNode is a boolean literal.
type BoolValueNode struct {
	tree  *Tree
	line  int
	Value bool
}

// NewBoolValue creates a boolean literal owned by the tree.
func (t *Tree) NewBoolValue(v bool, line int) *BoolValueNode {
	n := &BoolValueNode{tree: t, line: line, Value: v}
	t.add(n)
	return n
}

func (n *BoolValueNode) Line() int { return n.line }
func (n *BoolValueNode) valueNode() {}
func (n *BoolValueNode) Simplify()  {}

func (n *BoolValueNode) DebugPrint(w io.Writer, indent int) {
	fmt.Fprintf(w, "%sbool( %t )\n", indentChars(indent), n.Value)
}

func (n *BoolValueNode) GenerateCode(cb CodeBlock) error {
	cb.PushBool(n.Value)
	return nil
}

// StringValueNode is a string literal.
type StringValueNode struct {
	tree  *Tree
	line  int
	Value string
}

// NewStringValue creates a string literal owned by the tree.
func (t *Tree) NewStringValue(v string, line int) *StringValueNode {
	n := &StringValueNode{tree: t, line: line, Value: v}
	t.add(n)
	return n
}

func (n *StringValueNode) Line() int { return n.line }
func (n *StringValueNode) valueNode() {}
func (n *StringValueNode) Simplify()  {}

func (n *StringValueNode) DebugPrint(w io.Writer, indent int) {
	fmt.Fprintf(w, "%sstring( %q )\n", indentChars(indent), n.Value)
}

func (n *StringValueNode) GenerateCode(cb CodeBlock) error {
	cb.PushString(n.Value)
	return nil
}

// LocalVariableRefNode references a local, parameter, or implicit
// variable by canonical name. It resolves through the code block it was
// created in.
type LocalVariableRefNode struct {
	tree     *Tree
	line     int
	owner    CodeBlockNodeBase
	Name     string // canonical name (var_x, theResult, gItemDel, ...)
	RealName string // display name as the user wrote it
}

// NewLocalVariableRef creates a variable reference owned by the tree.
func (t *Tree) NewLocalVariableRef(owner CodeBlockNodeBase, name, realName string, line int) *LocalVariableRefNode {
	n := &LocalVariableRefNode{tree: t, line: line, owner: owner, Name: name, RealName: realName}
	t.add(n)
	return n
}

func (n *LocalVariableRefNode) Line() int { return n.line }
func (n *LocalVariableRefNode) valueNode()     {}
func (n *LocalVariableRefNode) containerNode() {}
func (n *LocalVariableRefNode) Simplify()      {}

func (n *LocalVariableRefNode) DebugPrint(w io.Writer, indent int) {
	fmt.Fprintf(w, "%slocalVar( %s )\n", indentChars(indent), n.Name)
}

func (n *LocalVariableRefNode) GenerateCode(cb CodeBlock) error {
	cb.PushVariable(n.Name)
	return nil
}

// GlobalPropertyRefNode references an engine property readable and
// writable through dedicated getter/setter instructions.
type GlobalPropertyRefNode struct {
	tree   *Tree
	line   int
	Getter string // instruction symbol that pushes the property
	Setter string // instruction symbol that stores into the property
	params []ValueNode
}

// NewGlobalPropertyRef creates a property reference owned by the tree.
func (t *Tree) NewGlobalPropertyRef(getter, setter string, line int) *GlobalPropertyRefNode {
	n := &GlobalPropertyRefNode{tree: t, line: line, Getter: getter, Setter: setter}
	t.add(n)
	return n
}

func (n *GlobalPropertyRefNode) Line() int { return n.line }
func (n *GlobalPropertyRefNode) valueNode()     {}
func (n *GlobalPropertyRefNode) containerNode() {}

// AddParam appends an argument for the getter/setter instructions.
func (n *GlobalPropertyRefNode) AddParam(v ValueNode) {
	n.params = append(n.params, v)
}

// Params returns the argument list.
func (n *GlobalPropertyRefNode) Params() []ValueNode { return n.params }

func (n *GlobalPropertyRefNode) Simplify() {
	for i, p := range n.params {
		n.params[i] = simplified(p)
	}
}

func (n *GlobalPropertyRefNode) DebugPrint(w io.Writer, indent int) {
	ind := indentChars(indent)
	fmt.Fprintf(w, "%sGlobal Property %q\n%s{\n", ind, n.Getter, ind)
	for _, p := range n.params {
		p.DebugPrint(w, indent+1)
	}
	fmt.Fprintf(w, "%s}\n", ind)
}

// GenerateCode pushes the arguments and emits the getter instruction.
func (n *GlobalPropertyRefNode) GenerateCode(cb CodeBlock) error {
	for _, p := range n.params {
		if err := p.GenerateCode(cb); err != nil {
			return err
		}
	}
	return cb.Operator(n.Getter, len(n.params))
}

// GenerateSetterCode pushes the arguments, then the new value, then
// emits the setter instruction.
func (n *GlobalPropertyRefNode) GenerateSetterCode(cb CodeBlock, newValue ValueNode) error {
	for _, p := range n.params {
		if err := p.GenerateCode(cb); err != nil {
			return err
		}
	}
	if err := newValue.GenerateCode(cb); err != nil {
		return err
	}
	return cb.Operator(n.Setter, len(n.params)+1)
}

// ChunkRefNode is an addressable substring of a value: a character,
// item, line or word range. When no explicit end offset was written,
// End is the same node as Start. Mutable chunks emit their target twice
// (source and destination slots) via MakeChunk; constant chunks emit
// MakeChunkConst.
type ChunkRefNode struct {
	tree    *Tree
	line    int
	Kind    ChunkType
	Start   ValueNode
	End     ValueNode
	Target  ValueNode
	Mutable bool
}

// NewChunkRef creates a chunk reference owned by the tree. end may be
// the same node as start.
func (t *Tree) NewChunkRef(kind ChunkType, start, end, target ValueNode, mutable bool, line int) *ChunkRefNode {
	n := &ChunkRefNode{tree: t, line: line, Kind: kind, Start: start, End: end, Target: target, Mutable: mutable}
	t.add(n)
	return n
}

func (n *ChunkRefNode) Line() int { return n.line }
func (n *ChunkRefNode) valueNode() {}

// containerNode makes mutable chunk references assignable; the parser
// hands out mutable chunks in container positions and as the leading
// chunk of a put or get source.
func (n *ChunkRefNode) containerNode() {}

func (n *ChunkRefNode) Simplify() {
	aliased := n.End == n.Start
	n.Start = simplified(n.Start)
	if aliased {
		n.End = n.Start
	} else {
		n.End = simplified(n.End)
	}
	n.Target = simplified(n.Target)
}

func (n *ChunkRefNode) DebugPrint(w io.Writer, indent int) {
	ind := indentChars(indent)
	mutability := "constant"
	if n.Mutable {
		mutability = "mutable"
	}
	fmt.Fprintf(w, "%sChunk( %s, %s )\n%s{\n", ind, n.Kind, mutability, ind)
	n.Start.DebugPrint(w, indent+1)
	n.End.DebugPrint(w, indent+1)
	n.Target.DebugPrint(w, indent+1)
	fmt.Fprintf(w, "%s}\n", ind)
}

func (n *ChunkRefNode) GenerateCode(cb CodeBlock) error {
	cb.PushInt(int64(n.Kind))
	for _, v := range []ValueNode{n.Start, n.End, n.Target} {
		if err := v.GenerateCode(cb); err != nil {
			return err
		}
	}
	if n.Mutable {
		// The target fills both the source and the destination slot so
		// the runtime can update the chunk in place.
		if err := n.Target.GenerateCode(cb); err != nil {
			return err
		}
		return cb.Operator("MakeChunk", 5)
	}
	return cb.Operator("MakeChunkConst", 4)
}
