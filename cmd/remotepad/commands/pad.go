package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"remotepad/internal/metrics"
	"remotepad/internal/pad"
	"remotepad/internal/session"
)

var padCmd = &cobra.Command{
	Use:   "pad HOST",
	Short: "Drive the host's pointer and keyboard from this terminal",
	Long: `Put the terminal in raw mode and forward keys to the host.

` + pad.HelpText,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		stdin := int(os.Stdin.Fd())
		if !term.IsTerminal(stdin) {
			return errors.New("pad needs an interactive terminal")
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		metricsOut, _ := cmd.Flags().GetString("metrics-out")
		if s, _ := cmd.Flags().GetFloat64("sensitivity"); s > 0 {
			cfg.Pad.Sensitivity = s
		}

		ctx, cancel := signalContext()
		defer cancel()

		host, port, err := resolveTarget(ctx, cfg, args[0], timeout)
		if err != nil {
			return err
		}

		s := session.New(session.PolicyFromConfig(cfg.Session))
		rec := metrics.NewRecorder(metrics.DefaultCapacity)
		s.SetRecorder(rec)
		s.OnStateChange(func(st session.State) {
			fmt.Fprintf(os.Stderr, "[%s]\r\n", st)
		})
		if err := s.Connect(ctx, host, port); err != nil {
			return err
		}
		defer s.Disconnect()

		old, err := term.MakeRaw(stdin)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		fmt.Fprintf(os.Stderr, "connected to %s; ctrl-c quits\r\n", s.Stats().Remote)

		autoResend := cfg.Pad.AutoResend == nil || *cfg.Pad.AutoResend
		runErr := pad.Run(ctx, os.Stdin, pad.NewKeymap(cfg.Pad), s, pad.Options{
			AutoResend: autoResend,
			Status:     os.Stderr,
		})
		_ = term.Restore(stdin, old)

		samples := rec.Samples()
		printSummary(metrics.Summarize(samples, time.Time{}))
		if metricsOut != "" {
			if err := metrics.AppendCSV(metricsOut, samples); err != nil {
				fmt.Fprintf(os.Stderr, "append metrics failed: %v\n", err)
			}
		}
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	},
}

func init() {
	padCmd.Flags().Duration("timeout", 3*time.Second, "Name resolution timeout")
	padCmd.Flags().Float64("sensitivity", 0, "Pointer sensitivity (default from config)")
	padCmd.Flags().String("metrics-out", "", "Append per-frame send samples to this CSV file")
}

func printSummary(sum metrics.Summary) {
	if sum.Count == 0 {
		fmt.Fprintln(os.Stderr, "no frames sent")
		return
	}
	fmt.Fprintf(os.Stderr, "frames=%d failures=%d bytes=%d\n", sum.Count, sum.Failures, sum.Bytes)
	fmt.Fprintf(os.Stderr, "write avg=%.2fms p95=%.2fms max=%.2fms\n", sum.AvgWriteMs, sum.P95WriteMs, sum.MaxWriteMs)
}
