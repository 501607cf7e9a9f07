package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Load a scheduling policy into a running quartzd",
}

var policyLoadCmd = &cobra.Command{
	Use:   "load NAME",
	Short: "Install NAME as the active scheduling policy (spec plugin.load)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, _ := cmd.Flags().GetString("opts")
		c, closeFn, err := dialControl(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.LoadPolicy(ctx, args[0], opts); err != nil {
			return err
		}
		fmt.Printf("policy %q loaded\n", args[0])
		return nil
	},
}

func init() {
	policyLoadCmd.Flags().String("opts", "", "Options string passed to the policy's Parse (spec plugin-opts)")
	policyCmd.PersistentFlags().String("control-addr", "127.0.0.1:9631", "quartzd control API address")
	policyCmd.AddCommand(policyLoadCmd)
}
