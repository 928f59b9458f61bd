package util

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

type Options struct {
	Src     string // Path to source file.
	Out     string // Path to output file.
	ShowAST bool   // Set true if compiler should print the syntax tree and exit.
	ShowIR  bool   // Set true if compiler should print the textual IR and exit.
	ShowASM bool   // Set true if compiler should print ARM32 assembly. Default mode.
	LLVM    bool   // Set true if compiler should use the LLVM framework for code generation.
	Verbose bool   // Set by -vb. No compiler stage reads it, so it changes no output.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "minicc 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	opt := Options{}
	if len(os.Args) < 2 {
		return opt, nil
	}
	args := os.Args[1:]
	for i1 := 0; i1 < len(args); i1++ {
		if !strings.HasPrefix(args[i1], "-") {
			if i1 != len(args)-1 {
				return opt, fmt.Errorf("expected path to source file as last argument, got %s", args[i1])
			}
			opt.Src = args[i1]
			continue
		}
		switch strings.TrimLeft(args[i1], "-") {
		case "h", "help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "show-ast":
			opt.ShowAST = true
		case "show-ir":
			opt.ShowIR = true
		case "show-asm":
			opt.ShowASM = true
		case "ll":
			// Use LLVM code generation instead of the built-in ARM32 backend.
			opt.LLVM = true
		case "o":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected path to output file, got new flag %s", args[i1+1])
			}
			opt.Out = args[i1+1]
			i1++
		case "v", "version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			return opt, fmt.Errorf("unexpected flag: %s", args[i1])
		}
	}
	if !opt.ShowAST && !opt.ShowIR {
		opt.ShowASM = true
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "-ll\tUse LLVM to generate output code instead of the built-in ARM32 backend.")
	_, _ = fmt.Fprintln(w, "-o\tPath and name of the output file.")
	_, _ = fmt.Fprintln(w, "--show-ast\tPrint the syntax tree and exit.")
	_, _ = fmt.Fprintln(w, "--show-ir\tPrint the textual intermediate representation and exit.")
	_, _ = fmt.Fprintln(w, "--show-asm\tPrint the ARM32 assembly listing. This is the default mode.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode flag. Accepted, but no compiler stage prints extra output.")
	_ = w.Flush()
}
