package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/danmuck/apptree/internal/demo"
	"github.com/danmuck/apptree/internal/launcher"
)

func main() {
	if launcher.IsChild() {
		if err := launcher.RunChild(); err != nil {
			fmt.Fprintf(os.Stderr, "apptree: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorMsg("%v", err))
		os.Exit(1)
	}
}
