package kv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/dss/lib/db/util"
	"github.com/spf13/cobra"
)

var (
	swapOld    string
	swapAbsent bool

	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Put(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, found, err := rpcStore.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", args[0], found, value)
			return nil
		},
	}
	getPrefixCmd = &cobra.Command{
		Use:   "get-prefix [prefix]",
		Short: "Reads all key value pairs below a prefix",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			kvs, err := rpcStore.GetPrefix(prefix)
			if err != nil {
				return err
			}
			for _, k := range util.SortedKeys(kvs) {
				fmt.Printf("%s=%s\n", k, kvs[k])
			}
			fmt.Printf("(%d keys)\n", len(kvs))
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes key value pairs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if len(args) == 1 {
				err = rpcStore.Delete(args[0])
			} else {
				err = rpcStore.DeleteBatch(args)
			}
			if err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	delPrefixCmd = &cobra.Command{
		Use:   "del-prefix [prefix]",
		Short: "Deletes all key value pairs below a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.DeletePrefix(args[0]); err != nil {
				return err
			}
			fmt.Println("delete prefix successfully")
			return nil
		},
	}
	swapCmd = &cobra.Command{
		Use:   "swap [key] [new value]",
		Short: "Sets the value for a key if it currently holds --old (or is absent with --absent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if swapAbsent == cmd.Flags().Changed("old") {
				return fmt.Errorf("exactly one of --old and --absent is required")
			}
			var oldValue *string
			if !swapAbsent {
				oldValue = &swapOld
			}
			applied, err := rpcStore.PutSwap(args[0], oldValue, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("applied=%v\n", applied)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
)

func init() {
	swapCmd.Flags().StringVar(&swapOld, "old", "", "Value the key must hold")
	swapCmd.Flags().BoolVar(&swapAbsent, "absent", false, "The key must not exist")
}
