package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sesampe/preaplus/intake"
	"github.com/sesampe/preaplus/internal/logutil"
)

// newChatCmd runs the dialogue on stdin/stdout, for trying prompts and
// parsers without a WhatsApp number.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the intake dialogue on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			reg, err := registryFromFlags(cmd)
			if err != nil {
				return err
			}
			store, stateDir, err := storeFromFlags(cmd, logger)
			if err != nil {
				return err
			}
			sink, err := sinkFromFlags(stateDir, logger)
			if err != nil {
				return err
			}

			engine := intake.NewEngine(intake.EngineOptions{
				Registry: reg,
				Store:    store,
				Remote:   remoteFromViper(logger),
				Sink:     sink,
				Logger:   logger,
			})

			subject := flagOrViperString(cmd, "subject", "")
			fmt.Println("(escribí un mensaje; Ctrl-D termina)")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				turn, err := engine.HandleInbound(cmd.Context(), subject, "", text)
				if err != nil {
					return err
				}
				for _, reply := range turn.Replies {
					fmt.Println(reply)
				}
				if turn.Completed {
					break
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().String("subject", "console", "Subject id for the terminal session.")
	cmd.Flags().String("modules-file", "", "YAML file with module prompt overrides.")
	cmd.Flags().String("state-dir", "", "Directory for session snapshots and completed records (empty = in-memory).")

	return cmd
}
