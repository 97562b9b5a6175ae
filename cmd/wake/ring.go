package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"wake-go/internal/app"
	"wake-go/internal/wake"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const bellInterval = 2 * time.Second

// open command
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Launch the app and handle the notification that opened it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Open")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Open(cmd.Context())
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Println("Not launched from an alarm.")
			return nil
		}
		ctx := cmd.Context()
		routed := p.WithDefaults()
		fmt.Printf("Alarm %s %s  [%s]\n", routed.Time, routed.Period, routed.Challenge)
		return runChallenge(ctx, func(ringer wake.Ringer, answer app.AnswerFunc) (*wake.AlarmCompletion, error) {
			return a.Dismiss(ctx, *p, ringer, answer)
		})
	},
}

// ring command
var ringCmd = &cobra.Command{
	Use:   "ring LINK",
	Short: "Run the dismiss challenge for an alarm deep link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Ring")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		return runChallenge(ctx, func(ringer wake.Ringer, answer app.AnswerFunc) (*wake.AlarmCompletion, error) {
			return a.Ring(ctx, args[0], ringer, answer)
		})
	},
}

// runChallenge rings the terminal bell and feeds stdin answers to dismiss.
func runChallenge(ctx context.Context, dismiss func(wake.Ringer, app.AnswerFunc) (*wake.AlarmCompletion, error)) error {
	var bell io.Writer = io.Discard
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bell = os.Stderr
	}
	ringer := app.NewBellRinger(bell, bellInterval)

	completion, err := dismiss(ringer, stdinAnswers(ctx))
	if err != nil {
		return err
	}
	fmt.Printf("Dismissed. Score %d, reaction %s\n",
		completion.CognitiveScore, completion.ReactionTime.Truncate(time.Second))
	return nil
}

// stdinAnswers reads one answer per line. The reader goroutine outlives the
// command only when the process is already exiting.
func stdinAnswers(ctx context.Context) app.AnswerFunc {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	return func(prompt string, attempt int) (string, error) {
		if attempt > 1 {
			fmt.Println("Wrong, try again.")
		}
		fmt.Printf("%s = ", prompt)
		select {
		case <-ctx.Done():
			fmt.Println()
			return "", ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			return line, nil
		}
	}
}
