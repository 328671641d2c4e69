// SPDX-License-Identifier: Apache-2.0

// Package cli implements the concierge CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/adiadia/concierge/internal/recorder"
	"github.com/spf13/cobra"
)

var (
	dbPath       string
	documentsDir string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Turn plain requests into reviewed mail, CRM and scheduling actions",
	Long: "Concierge interprets a plain-text request, asks for anything it is " +
		"missing, drafts the action, reviews it and only then executes. " +
		"History is kept in a local SQLite file.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "",
		"History database path (default: $CONCIERGE_SQLITE_PATH or data/interactions.db)")
	RootCmd.PersistentFlags().StringVar(&documentsDir, "documents", "documents",
		"Directory of reference documents")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("CONCIERGE_SQLITE_PATH"); env != "" {
		return env
	}
	return "data/interactions.db"
}

func openHistory() (*recorder.SQLiteRecorder, error) {
	return recorder.NewSQLite(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
