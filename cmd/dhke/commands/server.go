package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serverCmd() *cobra.Command {
	var (
		listen      string
		transport   string
		source      string
		group       int
		bits        int
		paramsFile  string
		maxSessions int
		timeout     time.Duration
		statusAddr  string
		announce    bool
		instance    string
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Accept key exchanges, one session per connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			s := &cfg.Server
			if f.Changed("listen") {
				s.Listen = listen
			}
			if f.Changed("transport") {
				s.Transport = transport
			}
			if f.Changed("source") {
				s.Params.Source = source
			}
			if f.Changed("group") {
				s.Params.Group = group
			}
			if f.Changed("bits") {
				s.Params.Bits = bits
			}
			if f.Changed("params-file") {
				s.Params.File = paramsFile
			}
			if f.Changed("max-sessions") {
				s.MaxSessions = maxSessions
			}
			if f.Changed("timeout") {
				s.HandshakeTimeout = timeout
			}
			if f.Changed("status") {
				s.StatusListen = statusAddr
			}
			if f.Changed("announce") {
				s.Discovery.Enabled = announce
			}
			if f.Changed("instance") {
				s.Discovery.Instance = instance
			}

			w, err := wire()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return w.RunServer(ctx, func(addr net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (%s)\n", addr, s.Transport)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&listen, "listen", "l", "", "host:port to listen on (default :4040)")
	f.StringVar(&transport, "transport", "", "tcp or kcp")
	f.StringVar(&source, "source", "", "parameter source: group, generate, per-session or file")
	f.IntVar(&group, "group", 0, "MODP group id for --source group (1, 2, 5, 14)")
	f.IntVar(&bits, "bits", 0, "prime size for --source generate or per-session")
	f.StringVar(&paramsFile, "params-file", "", "parameter file for --source file")
	f.IntVar(&maxSessions, "max-sessions", 0, "max concurrent sessions, 0 for unlimited")
	f.DurationVar(&timeout, "timeout", 0, "per-message read/write timeout")
	f.StringVar(&statusAddr, "status", "", "host:port for the HTTP status endpoint")
	f.BoolVar(&announce, "announce", false, "advertise the server over mDNS")
	f.StringVar(&instance, "instance", "", "mDNS instance name")
	return cmd
}
