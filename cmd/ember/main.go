// Command ember is the CLI entry point for the language: run a script
// file, or start an interactive REPL when given no arguments.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/vm"
)

const (
	exitUsage   = 120
	exitCompile = 121
	exitRuntime = 122
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	logrus.SetLevel(logrus.WarnLevel)

	switch len(os.Args) {
	case 1:
		runRepl(log)
	case 2:
		runFile(os.Args[1], log)
	default:
		fmt.Fprintln(os.Stderr, "usage: ember [script.dgn]")
		os.Exit(exitUsage)
	}
}

// fsLoader resolves an import path to "<dir>/<path>.dgn",
// dir being the directory the entry script (or, for the REPL, the
// current working directory) was loaded from.
type fsLoader struct {
	dir string
}

func (l *fsLoader) Load(path string) (string, error) {
	file := filepath.Join(l.dir, path+".dgn")
	data, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrapf(err, "read module %s", file)
	}
	return string(data), nil
}

func runFile(path string, log *logrus.Entry) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrapf(err, "read script %s", path))
		os.Exit(exitUsage)
	}
	loader := &fsLoader{dir: filepath.Dir(path)}
	machine := vm.New(loader, log, nil)
	if _, err := machine.Interpret(path, string(source)); err != nil {
		exitFor(err)
	}
}

// exitFor reports err to standard error and exits with 121 for a
// compile-time syntax failure, 120 for a failed import file read, or
// 122 for an uncaught runtime exception.
func exitFor(err error) {
	fmt.Fprintln(os.Stderr, err)
	switch err.(type) {
	case *compiler.CompileError:
		os.Exit(exitCompile)
	case *vm.ImportIOError:
		os.Exit(exitUsage)
	default:
		os.Exit(exitRuntime)
	}
}

// runRepl reads one line at a time and interprets each in turn against
// the same VM and loader, printing the line's result unless it was null. It exits
// cleanly on EOF.
func runRepl(log *logrus.Entry) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	loader := &fsLoader{dir: cwd}
	machine := vm.New(loader, log, nil)

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	reader := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("ember> ")
		}
		if !reader.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		// One shared module path keeps globals alive across lines.
		result, err := machine.Interpret("<repl>", line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if !result.IsNull() {
			fmt.Println(result.GoString())
		}
	}
}
