// Command kvobserve reads, writes and watches keys of an observable
// key-value store.
//
// Usage:
//
//	kvobserve --backend sqlite --path prefs.db set theme '"dark"'
//	kvobserve get theme
//	kvobserve watch theme font.size
//	KVOBSERVE_PASSPHRASE=... kvobserve secret set github token
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/kvobserve-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, command.ErrNotFound) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}
