package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PGSQLITE"

var rootCmd = &cobra.Command{
	Use:   "pgsqlite",
	Short: "PostgreSQL wire protocol frontend over an embedded SQLite engine",
	Long: `pgsqlite speaks the PostgreSQL v3 frontend/backend protocol and executes
every statement against an embedded SQLite database, translating DDL, DML,
and catalog introspection queries on the fly.

Running pgsqlite with no subcommand starts the server (equivalent to
"pgsqlite serve").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute adds every subcommand to the root command and runs it. Called once
// from main.main, following the teacher's cmd/packagemigrator.Execute shape.
func Execute(args ...string) {
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)

	rootCmd.SetArgs(args)
	registerServeFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1) //revive:disable-line:deep-exit
	}
}
