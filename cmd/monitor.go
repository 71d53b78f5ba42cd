package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/sparrow-cli/internal/intercept"
	"github.com/khanhnv2901/sparrow-cli/internal/monitor"
	"github.com/khanhnv2901/sparrow-cli/internal/netstat"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var monitorDuration time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the connection table and print new connections",
	Long: `Poll the host connection table and print every connection that appears.
Remote addresses on the firewall block list are flagged. Runs until
interrupted or until --duration elapses.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		container, err := appCtx.Container(ctx)
		if err != nil {
			return err
		}

		printer := &eventPrinter{
			w:        cmd.OutOrStdout(),
			json:     appCtx.Config.Output == outputJSON,
			firewall: container.Firewall,
		}
		if !container.Monitor.Start(printer) {
			return fmt.Errorf("monitor is already running")
		}
		if !printer.json {
			fmt.Fprintf(cmd.OutOrStdout(), "%s watching connections every %s (Ctrl+C to stop)\n",
				colorBold("monitor"), appCtx.Config.Monitor.Interval)
		}

		var timeout <-chan time.Time
		if monitorDuration > 0 {
			timer := time.NewTimer(monitorDuration)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
		case <-timeout:
		}
		container.Monitor.Stop()

		stats := container.Monitor.Stats()
		if printer.json {
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s %d connections (%d tcp, %d udp), %d dropped, %d blocked\n",
			colorInfo("→"), stats.Total, stats.TCP, stats.UDP, stats.Dropped, printer.blockedCount())
		return nil
	},
}

var monitorInterfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List network interfaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := netstat.Interfaces()
		if err != nil {
			return err
		}
		if getAppContext(cmd).Config.Output == outputJSON {
			return printJSON(cmd.OutOrStdout(), names)
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

// eventPrinter renders monitor events as they arrive.
type eventPrinter struct {
	w        io.Writer
	json     bool
	firewall *intercept.Firewall

	mu      sync.Mutex
	blocked int
}

type printedEvent struct {
	monitor.ConnectionEvent
	Blocked bool `json:"blocked,omitempty"`
}

func (p *eventPrinter) HandleEvent(ev monitor.ConnectionEvent) {
	blocked := ev.Remote != nil && p.firewall != nil && p.firewall.IsBlocked(ev.Remote.IP)

	p.mu.Lock()
	defer p.mu.Unlock()
	if blocked {
		p.blocked++
	}
	if p.json {
		_ = writeJSONLine(p.w, printedEvent{ConnectionEvent: ev, Blocked: blocked})
		return
	}
	fmt.Fprintln(p.w, formatEvent(ev, blocked))
}

func (p *eventPrinter) blockedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked
}

func formatEvent(ev monitor.ConnectionEvent, blocked bool) string {
	remote := "-"
	if ev.Remote != nil {
		remote = ev.Remote.String()
	}
	line := fmt.Sprintf("%s %-3s %-21s → %-21s %s",
		ev.Timestamp.Format("15:04:05"), strings.ToLower(ev.Transport), ev.Local.String(), remote, ev.State)
	if blocked {
		line += " " + colorError("[BLOCKED]")
	}
	return line
}

func addMonitorFlags(flags *pflag.FlagSet) {
	flags.DurationVar(&cliConfig.Monitor.Interval, "interval", cliConfig.Monitor.Interval, "connection table poll interval")
	flags.IntVar(&cliConfig.Monitor.QueueSize, "queue-size", cliConfig.Monitor.QueueSize, "events buffered between capture and delivery")
	flags.DurationVar(&cliConfig.Monitor.JoinTimeout, "join-timeout", cliConfig.Monitor.JoinTimeout, "how long stop waits for the workers")
}

func init() {
	addMonitorFlags(monitorCmd.Flags())
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	monitorCmd.AddCommand(monitorInterfacesCmd)
	rootCmd.AddCommand(monitorCmd)
}
