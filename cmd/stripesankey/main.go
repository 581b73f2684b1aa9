package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/stripesankey/internal/cli"
	sserrors "github.com/matzehuels/stripesankey/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes usage errors from failures.
func exitCode(err error) int {
	switch sserrors.GetCode(err) {
	case sserrors.ErrCodeInvalidInput, sserrors.ErrCodeInvalidFormat, sserrors.ErrCodeInvalidConfig,
		sserrors.ErrCodeInvalidSelection, sserrors.ErrCodeFileNotFound:
		return 2
	}
	return 1
}
