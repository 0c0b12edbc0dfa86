package cli

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// errAborted is returned when the operator declines a run.
var errAborted = errors.New("aborted")

// stdinIsTerminal reports whether a prompt can be answered interactively.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirm asks before mutating work. It never blocks a non-interactive run.
func confirm(cmd *cobra.Command, prompt string, assumeYes bool) bool {
	if assumeYes || !stdinIsTerminal() {
		return true
	}
	cmd.Printf("%s [y/N]: ", prompt)
	answer := strings.ToLower(readLine(bufio.NewReader(cmd.InOrStdin())))
	return answer == "y" || answer == "yes"
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// printSkipped lists excluded items with their reasons.
func printSkipped(cmd *cobra.Command, skipped []domain.SkippedItem) {
	if len(skipped) == 0 {
		return
	}
	cmd.Println("Skipped:")
	for _, s := range skipped {
		cmd.Printf("  %s: %s\n", s.Key, s.Reason)
	}
}
