package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	noColor    bool
	noWatch    bool
)

var rootCmd = &cobra.Command{
	Use:   "luadbg",
	Short: "Source-level debugger for Lua scripts",
	Long: `Luadbg runs Lua scripts under breakpoint and step control from an
interactive prompt, with live call-stack inspection and in-place editing
of scalar variables while the script is paused.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")
	rootCmd.PersistentFlags().BoolVar(&noWatch, "no-watch", false, "disable source file change watching")
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("luadbg %s\n", version))
}
