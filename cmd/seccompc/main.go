// SPDX-Licence-Identifier: MIT

// Command seccompc compiles the built-in seccomp policies into filter files
// and inspects existing ones.
package main

import (
	"os"

	"github.com/spf13/afero"
)

func main() {
	if err := RootCommand(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}
