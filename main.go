// A three-tier Brainfuck execution engine: a direct interpreter, a fused
// IR interpreter, and an ahead-of-execution x86_64 JIT compiler.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/bfjit/bf"
	"github.com/xyproto/bfjit/ir"
	"github.com/xyproto/bfjit/jit"
)

const versionString = "bfjit 0.1.0"

// exit codes. 0 on success, 1 is the generic failure code; the rest
// distinguish the error taxonomy spec.md's error table names so a caller
// scripting against this binary can tell failure kinds apart (the code does
// not depend on which tier ran).
const (
	exitOK = iota
	exitGeneric
	exitUnbalancedBrackets
	exitDisplacementOverflow
	exitEmitterOverflow
	exitIOFailure
	exitBoundsPanic
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*bf.BoundsError); ok {
				fmt.Fprintf(os.Stderr, "bfjit: %v\n", r)
				code = exitBoundsPanic
				return
			}
			fmt.Fprintf(os.Stderr, "bfjit: panic: %v\n", r)
			code = exitGeneric
		}
	}()

	var (
		mode        = flag.String("mode", "jit", "execution tier: interp, ir, or jit")
		verbose     = flag.Bool("v", false, "verbose mode (trace interpreter steps and emitted instructions)")
		pages       = flag.Int("pages", jit.DefaultPages, "JIT code buffer size, in native pages")
		showVersion = flag.Bool("version", false, "print version information and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <program.bf>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString)
		return exitOK
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return exitGeneric
	}

	bf.VerboseMode = *verbose
	ir.VerboseMode = *verbose
	jit.VerboseMode = *verbose

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfjit: %v\n", err)
		return exitGeneric
	}
	defer f.Close()

	ops, err := bf.Parse(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfjit: %v\n", err)
		return exitGeneric
	}

	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	switch *mode {
	case "interp":
		err = bf.NewInterp(ops).Run(in, out)
	case "ir":
		var instrs []ir.Instr
		instrs, err = ir.Lower(ops)
		if err == nil {
			err = ir.NewInterp(instrs).Run(in, out)
		}
	case "jit":
		var instrs []ir.Instr
		instrs, err = ir.Lower(ops)
		if err != nil {
			break
		}
		var prog *jit.Program
		prog, err = jit.Compile(instrs, *pages)
		if err != nil {
			break
		}
		defer prog.Release()
		err = prog.Run(in, out)
	default:
		fmt.Fprintf(os.Stderr, "bfjit: unknown mode %q (want interp, ir, or jit)\n", *mode)
		return exitGeneric
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "bfjit: %v\n", err)
		return exitCodeFor(err)
	}
	return exitOK
}

// exitCodeFor maps a returned error to the taxonomy's distinct exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, ir.ErrUnbalancedBrackets), errors.Is(err, bf.ErrNoMatchingJump):
		return exitUnbalancedBrackets
	case errors.Is(err, jit.ErrDisplacementOverflow):
		return exitDisplacementOverflow
	case errors.Is(err, jit.ErrEmitterOverflow):
		return exitEmitterOverflow
	case errors.Is(err, bf.ErrFailedToWrite), errors.Is(err, bf.ErrFailedToRead),
		errors.Is(err, ir.ErrFailedToWrite), errors.Is(err, ir.ErrFailedToRead),
		errors.Is(err, jit.ErrFailedToWrite), errors.Is(err, jit.ErrFailedToRead):
		return exitIOFailure
	default:
		return exitGeneric
	}
}
