package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var interceptCmd = &cobra.Command{
	Use:   "intercept",
	Short: "Evaluate request URLs against the security rules",
}

var interceptCheckCmd = &cobra.Command{
	Use:   "check <url>...",
	Short: "Report whether each URL would be allowed or blocked",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		container, err := appCtx.Container(cmd.Context())
		if err != nil {
			return err
		}

		type verdict struct {
			URL    string `json:"url"`
			Action string `json:"action"`
			Reason string `json:"reason,omitempty"`
			Rule   string `json:"rule,omitempty"`
		}
		verdicts := make([]verdict, 0, len(args))
		for _, u := range args {
			d := container.Interceptor.Decide(u)
			if appCtx.Config.Output != outputJSON {
				printDecision(cmd.OutOrStdout(), u, d)
				continue
			}
			verdicts = append(verdicts, verdict{URL: u, Action: d.Action, Reason: d.Reason, Rule: d.Rule})
		}
		if appCtx.Config.Output == outputJSON {
			return printJSON(cmd.OutOrStdout(), verdicts)
		}
		return nil
	},
}

var interceptRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the active blocked domains and malicious patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		container, err := appCtx.Container(cmd.Context())
		if err != nil {
			return err
		}
		set := container.Interceptor.Rules()

		if appCtx.Config.Output == outputJSON {
			return printJSON(cmd.OutOrStdout(), map[string][]string{
				"blocked_domains":    set.BlockedDomains,
				"malicious_patterns": set.MaliciousPatterns,
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, colorBold("Blocked domains"))
		for _, d := range set.BlockedDomains {
			fmt.Fprintf(w, "  %s\n", d)
		}
		fmt.Fprintln(w, colorBold("Malicious patterns"))
		for _, p := range set.MaliciousPatterns {
			fmt.Fprintf(w, "  %s\n", p)
		}
		return nil
	},
}

func init() {
	interceptCmd.AddCommand(interceptCheckCmd, interceptRulesCmd)
	rootCmd.AddCommand(interceptCmd)
}
