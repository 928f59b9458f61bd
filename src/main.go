package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"minicc/src/backend"
	"minicc/src/frontend"
	"minicc/src/ir/lir"
	ll "minicc/src/ir/llvm"
	"minicc/src/util"
)

// run reads the source code and executes the compiler stages. Behaviour is
// defined by the util.Options structure.
func run(opt util.Options, sink io.Writer) error {
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}

	// Generate syntax tree by lexing and parsing source code.
	root, err := frontend.Parse(src)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	wr := util.NewWriter(sink)

	// If --show-ast was passed: print the syntax tree and exit.
	if opt.ShowAST {
		sb := strings.Builder{}
		root.Print(&sb, 0)
		wr.WriteString(sb.String())
		return wr.Flush()
	}

	// Generate LLVM object code and exit, if flag is passed.
	if opt.LLVM {
		if err := ll.GenLLVM(opt, root); err != nil {
			return fmt.Errorf("error reported by LLVM: %w", err)
		}
		return nil
	}

	// Lower the syntax tree to the linear IR.
	m, errs := lir.GenLIR(opt, root)
	if errs.Len() > 0 {
		for _, e1 := range errs.All() {
			fmt.Fprintln(os.Stderr, e1)
		}
		return fmt.Errorf("%d error(s) during compilation", errs.Len())
	}

	// If --show-ir was passed: print the textual IR and exit.
	if opt.ShowIR {
		wr.WriteString(m.String())
		return wr.Flush()
	}

	// Generate output assembler.
	if err := backend.GenerateAssembler(opt, m, wr); err != nil {
		return fmt.Errorf("code generation error: %w", err)
	}
	return wr.Flush()
}

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	// Open the output sink.
	var sink io.Writer = os.Stdout
	if len(opt.Out) > 0 && !opt.LLVM {
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Println(err)
			}
		}()
		sink = f
	}

	if err := run(opt, sink); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
