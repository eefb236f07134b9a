package lock

import (
	"fmt"

	"github.com/ValentinKolb/dss/cmd/util"
	"github.com/ValentinKolb/dss/lib/lockmgr"
	"github.com/spf13/cobra"
)

var (
	locks lockmgr.ILockManager

	// LockCommands groups the lock subcommands
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Acquire and release locks",
		Long:  `Acquire and release locks of a lock manager shard. With --namespace the locks only conflict with locks of the same namespace.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			locks, err = util.NewLockClient(cmd)
			return err
		},
	}

	acquireCmd = &cobra.Command{
		Use:   "acquire <key>",
		Short: "Acquire a lock",
		Long:  "Acquire the lock of key. On success the owner ID is printed, it is needed to release the lock again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ok, owner, err := locks.AcquireLock(args[0])
			if err != nil {
				return fmt.Errorf("acquire %s: %w", args[0], err)
			}
			if !ok {
				fmt.Printf("%s is held by another owner\n", args[0])
				return nil
			}
			fmt.Println(owner)
			return nil
		},
	}

	releaseCmd = &cobra.Command{
		Use:   "release <key> <owner>",
		Short: "Release a lock",
		Long:  "Release the lock of key. Only the owner printed by acquire can release it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ok, err := locks.ReleaseLock(args[0], args[1])
			if err != nil {
				return fmt.Errorf("release %s: %w", args[0], err)
			}
			if !ok {
				return fmt.Errorf("release %s: not held by %s", args[0], args[1])
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(LockCommands)
	LockCommands.PersistentFlags().Uint64("shard", 200, util.WrapString("ID of the lock manager shard"))

	LockCommands.AddCommand(acquireCmd, releaseCmd)
}
