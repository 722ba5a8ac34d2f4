package ast

import (
	"fmt"
	"io"
)

// VariantType is the declared type hint for a variable entry.
type VariantType uint8

const (
	VariantInvalid VariantType = iota
	VariantEmptyString
	VariantInt
	VariantFloat
	VariantBool
	VariantString
)

// VariableEntry describes one declared local or global variable.
type VariableEntry struct {
	RealName     string // display name as the user wrote it
	Type         VariantType
	InitWithName bool // initialize with the display name instead of ""
	IsParameter  bool
	IsGlobal     bool
}

// CodeBlockNodeBase is implemented by every node that holds a statement
// list: handler definitions, loop bodies and conditional arms. Inner
// blocks resolve variables through their enclosing function.
type CodeBlockNodeBase interface {
	Node
	// AddCommand appends a statement to this block.
	AddCommand(cmd Node)
	// Commands returns the statement list in parse order.
	Commands() []Node
	// AddLocalVar declares a variable on the enclosing function. A
	// variable exists after its first reference; redeclaring is a no-op.
	AddLocalVar(name, realName string, typ VariantType, initWithName, isParam, isGlobal bool)
	// Locals returns the enclosing function's local table.
	Locals() map[string]*VariableEntry
	// Globals returns the compilation unit's global table.
	Globals() map[string]*VariableEntry
	// Function returns the enclosing handler definition.
	Function() *FunctionDefinitionNode
}

// FunctionDefinitionNode is a top-level handler: a function (returns a
// value) or a message/command handler.
type FunctionDefinitionNode struct {
	tree       *Tree
	line       int
	Name       string
	IsCommand  bool
	commands   []Node
	locals     map[string]*VariableEntry
	localOrder []string
	globals    map[string]*VariableEntry
}

// NewFunctionDefinition creates a handler definition owned by the tree.
// globals is the tree's global table.
func (t *Tree) NewFunctionDefinition(isCommand bool, name string, line int, globals map[string]*VariableEntry) *FunctionDefinitionNode {
	n := &FunctionDefinitionNode{
		tree:      t,
		line:      line,
		Name:      name,
		IsCommand: isCommand,
		locals:    make(map[string]*VariableEntry),
		globals:   globals,
	}
	t.add(n)
	return n
}

func (n *FunctionDefinitionNode) Line() int { return n.line }

func (n *FunctionDefinitionNode) AddCommand(cmd Node) {
	n.commands = append(n.commands, cmd)
}

func (n *FunctionDefinitionNode) Commands() []Node { return n.commands }

func (n *FunctionDefinitionNode) AddLocalVar(name, realName string, typ VariantType, initWithName, isParam, isGlobal bool) {
	if _, exists := n.locals[name]; exists {
		return
	}
	n.locals[name] = &VariableEntry{
		RealName:     realName,
		Type:         typ,
		InitWithName: initWithName,
		IsParameter:  isParam,
		IsGlobal:     isGlobal,
	}
	n.localOrder = append(n.localOrder, name)
	if isGlobal {
		if _, exists := n.globals[name]; !exists {
			n.globals[name] = &VariableEntry{RealName: realName, Type: typ, IsGlobal: true}
		}
	}
}

func (n *FunctionDefinitionNode) Locals() map[string]*VariableEntry  { return n.locals }
func (n *FunctionDefinitionNode) Globals() map[string]*VariableEntry { return n.globals }
func (n *FunctionDefinitionNode) Function() *FunctionDefinitionNode  { return n }

// LocalOrder returns the canonical names of all locals in declaration
// order.
func (n *FunctionDefinitionNode) LocalOrder() []string { return n.localOrder }

func (n *FunctionDefinitionNode) Simplify() {
	for _, c := range n.commands {
		c.Simplify()
	}
}

func (n *FunctionDefinitionNode) DebugPrint(w io.Writer, indent int) {
	ind := indentChars(indent)
	kind := "Function Definition"
	if n.IsCommand {
		kind = "Command Definition"
	}
	fmt.Fprintf(w, "%s%s %q\n%s{\n", ind, kind, n.Name, ind)
	for _, name := range n.localOrder {
		entry := n.locals[name]
		fmt.Fprintf(w, "%svar %s (%s)\n", indentChars(indent+1), name, entry.RealName)
	}
	for _, c := range n.commands {
		c.DebugPrint(w, indent+1)
	}
	fmt.Fprintf(w, "%s}\n", ind)
}

func (n *FunctionDefinitionNode) GenerateCode(cb CodeBlock) error {
	cb.StartFunction(n.Name, n.IsCommand, n.line)
	for _, name := range n.localOrder {
		entry := n.locals[name]
		cb.DeclareLocal(name, entry.RealName, entry.InitWithName)
	}
	for _, c := range n.commands {
		if err := c.GenerateCode(cb); err != nil {
			return err
		}
	}
	return cb.EndFunction()
}

// CodeBlockNode is a plain statement list inside a handler, e.g. the
// else-arm of a conditional. It stores statements itself and resolves
// variables through its owner.
type CodeBlockNode struct {
	tree     *Tree
	line     int
	owner    CodeBlockNodeBase
	commands []Node
}

// NewCodeBlock creates a statement block owned by the tree.
func (t *Tree) NewCodeBlock(owner CodeBlockNodeBase, line int) *CodeBlockNode {
	n := &CodeBlockNode{tree: t, line: line, owner: owner}
	t.add(n)
	return n
}

func (n *CodeBlockNode) Line() int { return n.line }

func (n *CodeBlockNode) AddCommand(cmd Node) { n.commands = append(n.commands, cmd) }
func (n *CodeBlockNode) Commands() []Node    { return n.commands }

func (n *CodeBlockNode) AddLocalVar(name, realName string, typ VariantType, initWithName, isParam, isGlobal bool) {
	n.owner.AddLocalVar(name, realName, typ, initWithName, isParam, isGlobal)
}

func (n *CodeBlockNode) Locals() map[string]*VariableEntry  { return n.owner.Locals() }
func (n *CodeBlockNode) Globals() map[string]*VariableEntry { return n.owner.Globals() }
func (n *CodeBlockNode) Function() *FunctionDefinitionNode  { return n.owner.Function() }

func (n *CodeBlockNode) Simplify() {
	for _, c := range n.commands {
		c.Simplify()
	}
}

func (n *CodeBlockNode) DebugPrint(w io.Writer, indent int) {
	ind := indentChars(indent)
	fmt.Fprintf(w, "%sBlock\n%s{\n", ind, ind)
	for _, c := range n.commands {
		c.DebugPrint(w, indent+1)
	}
	fmt.Fprintf(w, "%s}\n", ind)
}

func (n *CodeBlockNode) GenerateCode(cb CodeBlock) error {
	for _, c := range n.commands {
		if err := c.GenerateCode(cb); err != nil {
			return err
		}
	}
	return nil
}

// WhileLoopNode is a pre-test loop. Every repeat shape desugars to one.
type WhileLoopNode struct {
	tree      *Tree
	line      int
	owner     CodeBlockNodeBase
	condition ValueNode
	commands  []Node
}

// NewWhileLoop creates a loop node owned by the tree.
func (t *Tree) NewWhileLoop(owner CodeBlockNodeBase, line int) *WhileLoopNode {
	n := &WhileLoopNode{tree: t, line: line, owner: owner}
	t.add(n)
	return n
}

func (n *WhileLoopNode) Line() int { return n.line }

// SetCondition installs the loop condition.
func (n *WhileLoopNode) SetCondition(cond ValueNode) { n.condition = cond }

// Condition returns the loop condition.
func (n *WhileLoopNode) Condition() ValueNode { return n.condition }

func (n *WhileLoopNode) AddCommand(cmd Node) { n.commands = append(n.commands, cmd) }
func (n *WhileLoopNode) Commands() []Node    { return n.commands }

func (n *WhileLoopNode) AddLocalVar(name, realName string, typ VariantType, initWithName, isParam, isGlobal bool) {
	n.owner.AddLocalVar(name, realName, typ, initWithName, isParam, isGlobal)
}

func (n *WhileLoopNode) Locals() map[string]*VariableEntry  { return n.owner.Locals() }
func (n *WhileLoopNode) Globals() map[string]*VariableEntry { return n.owner.Globals() }
func (n *WhileLoopNode) Function() *FunctionDefinitionNode  { return n.owner.Function() }

func (n *WhileLoopNode) Simplify() {
	if n.condition != nil {
		n.condition = simplified(n.condition)
	}
	for _, c := range n.commands {
		c.Simplify()
	}
}

func (n *WhileLoopNode) DebugPrint(w io.Writer, indent int) {
	ind := indentChars(indent)
	fmt.Fprintf(w, "%sWhile Loop\n%s{\n", ind, ind)
	fmt.Fprintf(w, "%sCondition:\n", indentChars(indent+1))
	if n.condition != nil {
		n.condition.DebugPrint(w, indent+2)
	}
	fmt.Fprintf(w, "%sCommands:\n", indentChars(indent+1))
	for _, c := range n.commands {
		c.DebugPrint(w, indent+2)
	}
	fmt.Fprintf(w, "%s}\n", ind)
}

func (n *WhileLoopNode) GenerateCode(cb CodeBlock) error {
	if n.condition == nil {
		return fmt.Errorf("loop at line %d has no condition", n.line)
	}
	start := cb.Offset()
	if err := n.condition.GenerateCode(cb); err != nil {
		return err
	}
	exit := cb.EmitJumpIfFalse()
	cb.EnterLoop(start)
	for _, c := range n.commands {
		if err := c.GenerateCode(cb); err != nil {
			return err
		}
	}
	cb.EmitJumpTo(start)
	cb.PatchJump(exit)
	cb.LeaveLoop()
	return nil
}

// IfNode is a two-way branch. The then-arm statements live on the node
// itself; the optional else-arm is a separate block.
type IfNode struct {
	tree      *Tree
	line      int
	owner     CodeBlockNodeBase
	condition ValueNode
	commands  []Node
	elseBlock *CodeBlockNode
}

// NewIfNode creates a conditional owned by the tree.
func (t *Tree) NewIfNode(owner CodeBlockNodeBase, line int) *IfNode {
	n := &IfNode{tree: t, line: line, owner: owner}
	t.add(n)
	return n
}

func (n *IfNode) Line() int { return n.line }

// SetCondition installs the branch condition.
func (n *IfNode) SetCondition(cond ValueNode) { n.condition = cond }

// Condition returns the branch condition.
func (n *IfNode) Condition() ValueNode { return n.condition }

// CreateElseBlock attaches and returns the else-arm block.
func (n *IfNode) CreateElseBlock(line int) *CodeBlockNode {
	n.elseBlock = n.tree.NewCodeBlock(n.owner, line)
	return n.elseBlock
}

// ElseBlock returns the else-arm, or nil.
func (n *IfNode) ElseBlock() *CodeBlockNode { return n.elseBlock }

func (n *IfNode) AddCommand(cmd Node) { n.commands = append(n.commands, cmd) }
func (n *IfNode) Commands() []Node    { return n.commands }

func (n *IfNode) AddLocalVar(name, realName string, typ VariantType, initWithName, isParam, isGlobal bool) {
	n.owner.AddLocalVar(name, realName, typ, initWithName, isParam, isGlobal)
}

func (n *IfNode) Locals() map[string]*VariableEntry  { return n.owner.Locals() }
func (n *IfNode) Globals() map[string]*VariableEntry { return n.owner.Globals() }
func (n *IfNode) Function() *FunctionDefinitionNode  { return n.owner.Function() }

func (n *IfNode) Simplify() {
	if n.condition != nil {
		n.condition = simplified(n.condition)
	}
	for _, c := range n.commands {
		c.Simplify()
	}
	if n.elseBlock != nil {
		n.elseBlock.Simplify()
	}
}

func (n *IfNode) DebugPrint(w io.Writer, indent int) {
	ind := indentChars(indent)
	fmt.Fprintf(w, "%sIf\n%s{\n", ind, ind)
	fmt.Fprintf(w, "%sCondition:\n", indentChars(indent+1))
	if n.condition != nil {
		n.condition.DebugPrint(w, indent+2)
	}
	fmt.Fprintf(w, "%sThen:\n", indentChars(indent+1))
	for _, c := range n.commands {
		c.DebugPrint(w, indent+2)
	}
	if n.elseBlock != nil {
		fmt.Fprintf(w, "%sElse:\n", indentChars(indent+1))
		for _, c := range n.elseBlock.Commands() {
			c.DebugPrint(w, indent+2)
		}
	}
	fmt.Fprintf(w, "%s}\n", ind)
}

func (n *IfNode) GenerateCode(cb CodeBlock) error {
	if n.condition == nil {
		return fmt.Errorf("conditional at line %d has no condition", n.line)
	}
	if err := n.condition.GenerateCode(cb); err != nil {
		return err
	}
	elseJump := cb.EmitJumpIfFalse()
	for _, c := range n.commands {
		if err := c.GenerateCode(cb); err != nil {
			return err
		}
	}
	if n.elseBlock != nil {
		endJump := cb.EmitJump()
		cb.PatchJump(elseJump)
		if err := n.elseBlock.GenerateCode(cb); err != nil {
			return err
		}
		cb.PatchJump(endJump)
	} else {
		cb.PatchJump(elseJump)
	}
	return nil
}
