// Command jackc translates .jack source files into the textual stack-VM
// language consumed by the downstream virtual machine.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nand2vm/jackc/driver"
)

func main() {
	verbose := flag.Bool("v", false, "print per-file progress to stderr")
	jobs := flag.Int("j", 0, "max concurrent file translations in directory mode (default: GOMAXPROCS)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] [-j N] <file.jack|dir>\n", os.Args[0])
		os.Exit(1)
	}

	os.Exit(run(flag.Arg(0), *verbose, *jobs))
}

func run(target string, verbose bool, jobs int) int {
	files, err := driver.CollectJackFiles(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no .jack files found at %q\n", target)
		return 1
	}

	results := driver.Run(files, jobs, func(res driver.Result) {
		if verbose && res.Err == nil {
			fmt.Fprintf(os.Stderr, "Compiled %q -> %q\n", res.InputPath, res.OutputPath)
		}
	})

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Error: %q: %v\n", res.InputPath, res.Err)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}
