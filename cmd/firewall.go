package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var firewallCmd = &cobra.Command{
	Use:   "firewall",
	Short: "Manage the blocked IP list",
}

var firewallBlockCmd = &cobra.Command{
	Use:   "block <ip>...",
	Short: "Add IPs to the block list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := getAppContext(cmd).Container(cmd.Context())
		if err != nil {
			return err
		}
		for _, ip := range args {
			if err := container.Firewall.Block(cmd.Context(), ip); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s blocked %s\n", colorSuccess("✓"), ip)
		}
		return nil
	},
}

var firewallUnblockCmd = &cobra.Command{
	Use:   "unblock <ip>...",
	Short: "Remove IPs from the block list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := getAppContext(cmd).Container(cmd.Context())
		if err != nil {
			return err
		}
		for _, ip := range args {
			removed, err := container.Firewall.Unblock(cmd.Context(), ip)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s unblocked %s\n", colorSuccess("✓"), ip)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s was not blocked\n", colorInfo("→"), ip)
			}
		}
		return nil
	},
}

var firewallCheckCmd = &cobra.Command{
	Use:   "check <ip>...",
	Short: "Report whether each IP is blocked",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		container, err := appCtx.Container(cmd.Context())
		if err != nil {
			return err
		}
		status := make(map[string]bool, len(args))
		for _, ip := range args {
			status[ip] = container.Firewall.IsBlocked(ip)
		}
		if appCtx.Config.Output == outputJSON {
			return printJSON(cmd.OutOrStdout(), status)
		}
		for _, ip := range args {
			state := "allow"
			if status[ip] {
				state = "block"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", formatStatusWithColor(state), ip)
		}
		return nil
	},
}

var firewallListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked IPs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		container, err := appCtx.Container(cmd.Context())
		if err != nil {
			return err
		}
		ips := container.Firewall.List()
		if appCtx.Config.Output == outputJSON {
			return printJSON(cmd.OutOrStdout(), ips)
		}
		for _, ip := range ips {
			fmt.Fprintln(cmd.OutOrStdout(), ip)
		}
		return nil
	},
}

func init() {
	firewallCmd.AddCommand(firewallBlockCmd, firewallUnblockCmd, firewallCheckCmd, firewallListCmd)
	rootCmd.AddCommand(firewallCmd)
}
