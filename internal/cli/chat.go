// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/adiadia/concierge/internal/dispatch"
	"github.com/adiadia/concierge/internal/documents"
	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/fallback"
	"github.com/adiadia/concierge/internal/gate"
	"github.com/adiadia/concierge/internal/pipeline"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [request]",
		Short: "Handle one request interactively",
		Long: "Interprets the request, asks follow-up questions when fields are " +
			"missing and requests confirmation before executing a borderline draft.",
		Run: runChat,
	}

	cmd.Flags().Bool("verbose", false, "Log pipeline internals to stderr")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	history, err := openHistory()
	if err != nil {
		exitErr("open history", err)
	}
	defer history.Close()

	var logOut io.Writer = io.Discard
	if verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	dispatcher := dispatch.NewMemory(time.Now)
	p := pipeline.New(pipeline.Deps{
		Gate:      gate.New(dispatcher, gate.Options{Logger: logger}),
		Fallback:  fallback.New(fallback.TemplateGenerator{}, fallback.Options{Logger: logger}),
		Recorder:  history,
		Documents: documents.NewStore(documentsDir),
		Logger:    logger,
	})

	scanner := bufio.NewScanner(os.Stdin)
	ctx := cmd.Context()

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		fmt.Print("What can I do for you?\n> ")
		if !scanner.Scan() {
			return
		}
		text = scanner.Text()
	}

	session, turn := p.Begin(ctx, text)
	for {
		switch turn.Kind {
		case pipeline.TurnAsk:
			if turn.RetryNotice != "" {
				fmt.Println(turn.RetryNotice)
			}
			fmt.Printf("%s\n> ", turn.Question)
			if !scanner.Scan() {
				turn = session.Cancel(ctx)
				continue
			}
			turn = session.Answer(ctx, scanner.Text())

		case pipeline.TurnConfirm:
			printDraft(turn.Draft, turn.Review)
			fmt.Print("Send it? [y/N] > ")
			if !scanner.Scan() {
				turn = session.Cancel(ctx)
				continue
			}
			answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
			turn = session.Confirm(ctx, answer == "y" || answer == "yes")

		case pipeline.TurnDone:
			printResult(turn)
			return
		}
	}
}

func printDraft(d *domain.Draft, review *domain.ReviewResult) {
	if d == nil {
		return
	}
	fmt.Printf("\nDraft for %s:\n", d.Capability)

	keys := make([]string, 0, len(d.Payload))
	for k := range d.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, d.Payload[k])
	}

	if review != nil {
		fmt.Printf("Review score %.2f", review.Score)
		if len(review.Issues) > 0 {
			fmt.Print(", concerns:")
			for _, issue := range review.Issues {
				fmt.Printf("\n  - %s", issue.Description)
			}
		}
		fmt.Println()
	}
}

func printResult(turn pipeline.Turn) {
	switch turn.Status {
	case domain.RequestSuccess:
		fmt.Println("Done.")
	case domain.RequestAbandoned:
		fmt.Println("Request abandoned.")
	default:
		fmt.Println("Request failed.")
	}
	if turn.Message != "" {
		fmt.Println(turn.Message)
	}
	for _, outcome := range turn.Outcomes {
		if outcome.Success {
			fmt.Printf("  %s: ok (%s)\n", outcome.Capability, outcome.Reference)
		} else {
			fmt.Printf("  %s: failed (%s)\n", outcome.Capability, outcome.Failure)
		}
	}
}
