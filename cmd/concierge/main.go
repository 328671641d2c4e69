// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/adiadia/concierge/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
