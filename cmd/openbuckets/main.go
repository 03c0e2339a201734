package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run(context.Background(), os.Stderr))
}

// run loads an optional .env from the working directory, executes the root
// command and maps the outcome to an exit code.
func run(ctx context.Context, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "open-buckets: ignoring .env: %v\n", err)
	}
	err := newRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 1
	default:
		fmt.Fprintf(stderr, "open-buckets: %v\n", err)
		return 1
	}
}
