// README: Entry point; dispatches to the cobra command tree.
package main

import (
	"os"

	"pickup/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		l := logger.New("main")
		l.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
