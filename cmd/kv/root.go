package kv

import (
	"github.com/ValentinKolb/dss/cmd/util"
	"github.com/ValentinKolb/dss/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands groups the key-value subcommands
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Read and write keys of a store shard",
		Long:  `Read and write keys of a store shard. With --namespace all keys are scoped to that namespace, other namespaces stay invisible.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			rpcStore, err = util.NewStoreClient(cmd)
			return err
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(KeyValueCommands)
	KeyValueCommands.PersistentFlags().Uint64("shard", 100, util.WrapString("ID of the store shard"))

	KeyValueCommands.AddCommand(putCmd, getCmd, getPrefixCmd, delCmd, delPrefixCmd, swapCmd, infoCmd)
}
