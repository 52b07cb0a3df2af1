package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"remotepad/internal/config"
	"remotepad/internal/protocol"
	"remotepad/internal/session"
)

// sendCmd is the parent command for one-shot events
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Connect to a host, send one event and disconnect",
	Long: `Send a single input event. HOST may be an IP address, a .local name, or the
hostname of a discovered or configured host, optionally followed by :PORT.`,
}

var sendMoveCmd = &cobra.Command{
	Use:   "move HOST DX DY",
	Short: "Move the pointer by a relative offset",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dx, dy, err := parsePair(args[1], args[2])
		if err != nil {
			return err
		}
		return sendOne(cmd, args[0], protocol.PointerMove{DX: dx, DY: dy})
	},
}

var sendScrollCmd = &cobra.Command{
	Use:   "scroll HOST DX DY",
	Short: "Scroll by a delta",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dx, dy, err := parsePair(args[1], args[2])
		if err != nil {
			return err
		}
		return sendOne(cmd, args[0], protocol.PointerScroll{DX: dx, DY: dy})
	},
}

var sendClickCmd = &cobra.Command{
	Use:   "click HOST [left|middle|right]",
	Short: "Click, press or release a pointer button",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		button := protocol.ButtonLeft
		if len(args) == 2 {
			b, err := protocol.ParseButton(args[1])
			if err != nil {
				return err
			}
			button = b
		}
		phaseArg, _ := cmd.Flags().GetString("phase")
		phase, err := protocol.ParsePhase(phaseArg)
		if err != nil {
			return err
		}
		return sendOne(cmd, args[0], protocol.PointerClick{Button: button, Phase: phase})
	},
}

var sendTypeCmd = &cobra.Command{
	Use:   "type HOST TEXT...",
	Short: "Type text on the host",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOne(cmd, args[0], protocol.TextInput{Text: strings.Join(args[1:], " ")})
	},
}

var sendKeyCmd = &cobra.Command{
	Use:   "key HOST NAME",
	Short: "Press a named key (enter, backspace, tab, escape, ...)",
	Long: `Send a key action. By default the key is tapped: a press followed by a
release. Use --phase press or --phase release to send only one half.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		phaseArg, _ := cmd.Flags().GetString("phase")
		key := strings.ToLower(args[1])
		if phaseArg == "tap" {
			return sendOne(cmd, args[0],
				protocol.KeyAction{Key: key, Phase: protocol.PhasePress},
				protocol.KeyAction{Key: key, Phase: protocol.PhaseRelease})
		}
		phase, err := protocol.ParsePhase(phaseArg)
		if err != nil {
			return err
		}
		return sendOne(cmd, args[0], protocol.KeyAction{Key: key, Phase: phase})
	},
}

func init() {
	sendCmd.PersistentFlags().Duration("timeout", 3*time.Second, "Name resolution timeout")
	sendClickCmd.Flags().String("phase", string(protocol.PhaseClick), "Button phase: click, press or release")
	sendKeyCmd.Flags().String("phase", "tap", "Key phase: tap, press or release")

	sendCmd.AddCommand(sendMoveCmd)
	sendCmd.AddCommand(sendScrollCmd)
	sendCmd.AddCommand(sendClickCmd)
	sendCmd.AddCommand(sendTypeCmd)
	sendCmd.AddCommand(sendKeyCmd)
}

func parsePair(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dx %q", a)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dy %q", b)
	}
	return x, y, nil
}

// sendOne validates events before touching the network, then connects,
// sends them in order and disconnects.
func sendOne(cmd *cobra.Command, hostArg string, events ...protocol.Event) error {
	for _, ev := range events {
		if err := protocol.Validate(ev); err != nil {
			return err
		}
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := signalContext()
	defer cancel()

	host, port, err := resolveTarget(ctx, cfg, hostArg, timeout)
	if err != nil {
		return err
	}
	s, err := dialSession(ctx, cfg, host, port)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	for _, ev := range events {
		if err := s.Send(ev); err != nil {
			return err
		}
	}
	fmt.Printf("sent %d event(s) to %s\n", len(events), s.Stats().Remote)
	return nil
}

func dialSession(ctx context.Context, cfg config.Config, host string, port uint16) (*session.Session, error) {
	s := session.New(session.PolicyFromConfig(cfg.Session))
	if err := s.Connect(ctx, host, port); err != nil {
		return nil, err
	}
	return s, nil
}
