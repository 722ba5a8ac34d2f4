package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/agenthands/ntalk/pkg/compiler/ast"
	"github.com/agenthands/ntalk/pkg/compiler/emitter"
	"github.com/agenthands/ntalk/pkg/compiler/lexer"
	"github.com/agenthands/ntalk/pkg/compiler/parser"
	"github.com/agenthands/ntalk/pkg/vm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ntalk [build|eval] ...")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		buildScript()
	case "eval":
		evalLine()
	default:
		fmt.Println("Unknown command:", os.Args[1])
		os.Exit(1)
	}
}

type nodeCounter struct {
	count int
}

func (n *nodeCounter) NodeAdded(tree *ast.Tree, node ast.Node, count int) {
	n.count = count
}

func buildScript() {
	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	printAST := buildCmd.Bool("ast", false, "Print the parse tree instead of emitting bytecode")
	printProgress := buildCmd.Bool("progress", false, "Report the node count after parsing")

	if len(os.Args) < 3 {
		fmt.Println("Usage: ntalk build <script.talk> [-ast] [-progress]")
		os.Exit(1)
	}
	scriptPath := os.Args[2]
	buildCmd.Parse(os.Args[3:])

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	toks, err := lexer.NewScanner(src).ScanAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	counter := &nodeCounter{}
	tree := ast.NewTree(counter)
	p := parser.New()
	p.SetDiagnostics(os.Stderr)
	if err := p.Parse(scriptPath, toks, tree); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tree.Simplify()

	if *printProgress {
		fmt.Fprintf(os.Stderr, "%s: %d nodes\n", scriptPath, counter.count)
	}

	if *printAST {
		tree.DebugPrint(os.Stdout)
		return
	}

	bc, err := emitter.Emit(tree)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	dumpBytecode(bc)
}

func evalLine() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ntalk eval <code>")
		os.Exit(1)
	}
	code := os.Args[2]

	toks, err := lexer.NewScanner([]byte(code)).ScanAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tree := ast.NewTree(nil)
	p := parser.New()
	p.SetDiagnostics(os.Stderr)
	if err := p.ParseCommandOrExpression("<eval>", toks, tree); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tree.Simplify()
	tree.DebugPrint(os.Stdout)
}

func dumpBytecode(bc *vm.Bytecode) {
	for name, info := range bc.Functions {
		kind := "function"
		if info.IsCommand {
			kind = "command"
		}
		fmt.Printf("%s %s: entry %d, %d locals\n", kind, name, info.Entry, info.NumLocals)
	}
	for i, ins := range bc.Instructions {
		fmt.Printf("%4d  %-24s %d\n", i, vm.Op(ins).String(), vm.Operand(ins))
	}
	for i, c := range bc.Constants {
		fmt.Printf("const %d = %s\n", i, c.String())
	}
}
