// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"io"
	"os"
)

// cliPrinter is a thin stdout/stderr wrapper, matching the teacher's
// own Printer helper used throughout cmd/*.go.
type cliPrinter struct{}

var printer = cliPrinter{}

func (cliPrinter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

func (cliPrinter) Println(args ...interface{}) {
	fmt.Fprintln(os.Stdout, args...)
}

func (cliPrinter) Fprintf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
