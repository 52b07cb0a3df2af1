package commands

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"remotepad/internal/sink"
)

var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run a test host that prints every frame it receives",
	Long: `Listen for control sessions and print each received frame with its decoded
event. Useful to check what a client puts on the wire.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		ctx, cancel := signalContext()
		defer cancel()

		var mu sync.Mutex
		l, err := sink.Start(listen, func(f sink.Frame) {
			mu.Lock()
			defer mu.Unlock()
			ts := time.Now().Format("15:04:05.000")
			if f.Err != nil {
				fmt.Printf("%s %s invalid frame %q: %v\n", ts, f.Remote, f.Raw, f.Err)
				return
			}
			fmt.Printf("%s %s %s %+v\n", ts, f.Remote, f.Event.Action(), f.Event)
		})
		if err != nil {
			return err
		}
		defer l.Close()

		fmt.Fprintf(os.Stderr, "sink listening on %s\n", l.Addr())
		<-ctx.Done()
		return nil
	},
}

func init() {
	sinkCmd.Flags().String("listen", ":9999", "TCP listen address")
}
