package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	reconapp "github.com/khanhnv2901/sparrow-cli/internal/application/recon"
	"github.com/khanhnv2901/sparrow-cli/internal/dnscache"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <domain>...",
	Short: "Resolve domains to IPv4 addresses over DNS-over-HTTPS",
	Long: `Resolve one or more domains through the DoH cache. Repeated domains are
answered from the cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		container, err := appCtx.Container(ctx)
		if err != nil {
			return err
		}

		results := make([]any, 0, len(args))
		var firstErr error
		for _, domain := range args {
			result, err := container.Recon.Run(ctx, reconapp.Request{Tool: reconapp.ToolResolve, Target: domain})
			if err != nil {
				appCtx.Logger.Debugw("resolve failed", "domain", domain, "error", err)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", colorError("✗"), domain, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			results = append(results, result)
		}

		if appCtx.Config.Output == outputJSON {
			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if err := printResult(cmd.OutOrStdout(), outputText, r); err != nil {
					return err
				}
			}
		}
		return firstErr
	},
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "DNS-over-HTTPS settings",
}

var dnsProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the built-in DoH providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		names := make([]string, 0, len(dnscache.KnownProviders))
		for name := range dnscache.KnownProviders {
			names = append(names, name)
		}
		sort.Strings(names)

		if appCtx.Config.Output == outputJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"providers": dnscache.KnownProviders,
				"selected":  appCtx.Config.DNS.Provider,
			})
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, name := range names {
			endpoint := dnscache.KnownProviders[name]
			marker := " "
			if endpoint == appCtx.Config.DNS.Provider || name == appCtx.Config.DNS.Provider {
				marker = colorSuccess("*")
			}
			fmt.Fprintf(tw, "%s %s\t%s\n", marker, name, endpoint)
		}
		return tw.Flush()
	},
}

func init() {
	dnsCmd.AddCommand(dnsProvidersCmd)
	rootCmd.AddCommand(resolveCmd, dnsCmd)
}
