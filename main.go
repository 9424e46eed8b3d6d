package main

import (
	"errors"
	"fmt"
	"marketplace-watcher/app"
	"marketplace-watcher/scheduler"
	"os"
)

func main() {
	err := app.Execute()
	if err == nil || errors.Is(err, scheduler.ErrTerminated) {
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
