// Package driver is the CLI-level orchestration: discovering .jack files,
// running one independent compiler pipeline per file, and fanning
// directory-mode batches out over a bounded worker pool. The core
// translation pipeline itself stays synchronous and single-threaded; this
// package is the only place concurrency is introduced.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nand2vm/jackc/compiler"
	"github.com/nand2vm/jackc/lexer"
	"github.com/nand2vm/jackc/vmwriter"
)

// IOError reports a file that could not be opened, read, or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Result is the outcome of translating one .jack file.
type Result struct {
	InputPath  string
	OutputPath string
	Err        error
}

// ClassName returns the class name implied by a source file's path: the
// file stem, per the one-class-per-file convention.
func ClassName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func outputPath(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + ".vm"
}

// CompileUnit translates one .jack file end to end. Input and output
// handles are scoped to this call and released deterministically,
// including on the failure path; a truncated .vm file may be left behind
// on abort, same as the core's first-fault-abort contract — cleanup is left
// to the caller.
func CompileUnit(path string) Result {
	res := Result{InputPath: path, OutputPath: outputPath(path)}

	in, err := os.Open(path)
	if err != nil {
		res.Err = &IOError{Op: "open", Path: path, Err: err}
		return res
	}
	defer in.Close()

	lex, err := lexer.New(in)
	if err != nil {
		res.Err = &IOError{Op: "read", Path: path, Err: err}
		return res
	}

	outFile, err := os.OpenFile(res.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		res.Err = &IOError{Op: "create", Path: res.OutputPath, Err: err}
		return res
	}
	defer outFile.Close()

	vw := vmwriter.New(outFile)
	engine := compiler.New(lex, vw)

	if err := engine.CompileClass(); err != nil {
		res.Err = err
		return res
	}
	if err := vw.Close(); err != nil {
		res.Err = &IOError{Op: "write", Path: res.OutputPath, Err: err}
	}
	return res
}

// CollectJackFiles resolves the CLI's single positional argument: a file
// ending in .jack, or a directory, whose top-level .jack files (no
// recursion) are returned in a deterministic, sorted order.
func CollectJackFiles(fileOrDir string) ([]string, error) {
	info, err := os.Stat(fileOrDir)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: fileOrDir, Err: err}
	}

	if !info.IsDir() {
		if filepath.Ext(fileOrDir) != ".jack" {
			return nil, fmt.Errorf("%q is not a .jack file", fileOrDir)
		}
		return []string{fileOrDir}, nil
	}

	entries, err := os.ReadDir(fileOrDir)
	if err != nil {
		return nil, &IOError{Op: "readdir", Path: fileOrDir, Err: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jack" {
			continue
		}
		files = append(files, filepath.Join(fileOrDir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run translates every file in files. Each is a fully independent pipeline
// (own Lexer, SymbolTable, CompilationEngine, Emitter); Run fans them out
// over an errgroup bounded by concurrency file translations at once
// (concurrency <= 0 means runtime.GOMAXPROCS(0)). progress, if non-nil, is
// called once per completed unit and must not block.
//
// Unlike errgroup's usual fail-fast idiom, a unit's failure never cancels
// its siblings: the batch continues regardless, and the caller inspects
// each Result for its own error.
func Run(files []string, concurrency int, progress func(Result)) []Result {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(files))
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			res := CompileUnit(path)
			results[i] = res
			if progress != nil {
				progress(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
