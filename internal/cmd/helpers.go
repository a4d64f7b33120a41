package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// dirHasFiles reports whether dir exists and contains anything besides
// chartfold's own metadata directory.
func dirHasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name() != ".chartfold" {
			return true
		}
	}
	return false
}

// isTerminal checks if stdin is a TTY.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptYesNo asks the user a yes/no question.
// Returns error if stdin is not a TTY and cannot read input.
func promptYesNo(question string) (bool, error) {
	if !isTerminal() {
		return false, fmt.Errorf("cannot prompt for input: stdin is not a TTY. Use --force to skip interactive prompts")
	}

	fmt.Printf("%s [y/N] ", question)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
