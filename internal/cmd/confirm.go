package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// confirm prints summary and asks the operator to proceed, unless --yes
// or ROW_YES auto-confirms it. The answer is the first line read from
// stdin, piped or not; a stdin that ends (or fails) before a full line
// reads as "no".
func confirm(summary string) (bool, error) {
	if opts != nil && opts.Yes {
		fmt.Fprintf(os.Stdout, "%s [auto-confirmed]\n", summary)
		return true, nil
	}

	fmt.Fprintf(os.Stdout, "%s\nSubmit? [y/N] ", summary)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
