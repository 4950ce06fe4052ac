package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/luadbg/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run SCRIPT... [-- ARGS...]",
	Short: "Debug one or more Lua scripts interactively",
	Long: `Run loads the named scripts as debug sessions and opens the
interactive prompt. The first script becomes the active session.
Arguments after -- are handed to the script when it starts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scripts := args
		var scriptArgs []string
		if dash := cmd.ArgsLenAtDash(); dash >= 0 {
			scripts = args[:dash]
			scriptArgs = args[dash:]
		}
		if len(scripts) == 0 {
			return errors.New("run: no script named before --")
		}

		application, err := app.New(app.Options{
			ConfigPath: configPath,
			Scripts:    scripts,
			ScriptArgs: scriptArgs,
			NoColor:    noColor,
			NoWatch:    noWatch,
		})
		if err != nil {
			return err
		}
		defer application.Shutdown()
		return application.Run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
