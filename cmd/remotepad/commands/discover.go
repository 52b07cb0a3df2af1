package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"remotepad/internal/addrutil"
	"remotepad/internal/discovery"
	"remotepad/internal/store"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List remote-control hosts on the local network",
	Long: `Browse _remotecontrol._tcp for a fixed window and print every host found,
together with the static hosts from the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		window, _ := cmd.Flags().GetDuration("timeout")
		format, _ := cmd.Flags().GetString("format")

		ctx, cancel := signalContext()
		defer cancel()

		snap, _ := browseFor(ctx, cfg, window)
		return writeSnapshot(os.Stdout, snap, format)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow hosts appearing and disappearing until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		svc := newDiscovery(cfg, 0)
		var prev store.Snapshot
		if err := svc.Start(func(snap store.Snapshot) {
			printChanges(os.Stdout, prev, snap)
			prev = snap
		}); err != nil {
			return err
		}
		defer svc.Stop()

		if svc.Status() == discovery.Idle {
			fmt.Fprintln(os.Stderr, "discovery disabled in config; showing configured hosts only")
		}
		<-ctx.Done()
		if svc.Status() == discovery.Unavailable {
			return fmt.Errorf("multicast discovery unavailable")
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().Duration("timeout", 3*time.Second, "How long to browse")
	discoverCmd.Flags().String("format", "table", "Output format: table, yaml or json")
}

func writeSnapshot(w io.Writer, snap store.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "yaml":
		return snap.WriteYAML(w)
	case "json":
		return snap.WriteJSON(w)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if snap.Len() == 0 {
		_, err := fmt.Fprintln(w, "no hosts found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tSYSTEM\tVERSION\tADDRESS\tSOURCE\tID")
	for _, h := range snap.Hosts() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			h.Hostname, h.System, h.ProtocolVersion, addrutil.Target(h.Address.String(), h.Port), h.Source, h.ID)
	}
	return tw.Flush()
}

// printChanges writes one line per added, changed or removed host.
func printChanges(w io.Writer, prev, next store.Snapshot) {
	now := time.Now().Format("15:04:05")
	for _, h := range next.Hosts() {
		old, ok := prev.Get(h.ID)
		target := addrutil.Target(h.Address.String(), h.Port)
		switch {
		case !ok:
			fmt.Fprintf(w, "%s + %s %s\n", now, h.Label(), target)
		case old.Address != h.Address || old.Port != h.Port || old.Label() != h.Label():
			fmt.Fprintf(w, "%s ~ %s %s\n", now, h.Label(), target)
		}
	}
	for _, h := range prev.Hosts() {
		if _, ok := next.Get(h.ID); !ok {
			fmt.Fprintf(w, "%s - %s\n", now, h.Label())
		}
	}
}
