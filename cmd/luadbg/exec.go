package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/luadbg/internal/runtime"
)

var execCmd = &cobra.Command{
	Use:   "exec SCRIPT [-- ARGS...]",
	Short: "Run a Lua script without the debugger",
	Long: `Exec compiles and runs a script uninstrumented, at full speed.
No breakpoints fire and no prompt appears; the script owns the terminal
until it finishes or is interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
		prog, err := runtime.Compile(string(source), args[0])
		if err != nil {
			return err
		}

		host := runtime.NewHost()
		defer host.Close()
		host.OnPrint(func(text string) {
			fmt.Fprint(cmd.OutOrStdout(), text)
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return host.Run(ctx, prog, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
