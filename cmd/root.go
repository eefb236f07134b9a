package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dss/cmd/kv"
	"github.com/ValentinKolb/dss/cmd/lock"
	"github.com/ValentinKolb/dss/cmd/serve"
	"github.com/ValentinKolb/dss/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dss",
		Short: "dynamic storage service",
		Long: fmt.Sprintf(`dss (v%s)

A namespaced key-value store. Every namespace is an isolated sub-tree
"dss.<namespace>." of a shared store, served locally or replicated with RAFT.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dss",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dss v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
