package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dhke/internal/crypto"
	"dhke/internal/discovery"
	"dhke/internal/domain"
	"dhke/internal/store"
)

func clientCmd() *cobra.Command {
	var (
		transport     string
		timeout       time.Duration
		minBits       int
		maxBits       int
		discover      bool
		instance      string
		showSecret    bool
		saveKey       string
		passphraseEnv string
	)
	cmd := &cobra.Command{
		Use:   "client [host:port]",
		Short: "Run one key exchange against a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			c := &cfg.Client
			if len(args) == 1 {
				c.Address = args[0]
			}
			if f.Changed("transport") {
				c.Transport = transport
			}
			if f.Changed("timeout") {
				c.Timeout = timeout
			}
			if f.Changed("min-bits") {
				c.MinPrimeBits = minBits
			}
			if f.Changed("max-bits") {
				c.MaxPrimeBits = maxBits
			}

			var passphrase string
			if saveKey != "" {
				passphrase = os.Getenv(passphraseEnv)
				if passphrase == "" {
					return fmt.Errorf("--save-key needs a passphrase in $%s", passphraseEnv)
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if discover {
				dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				entry, err := discovery.Lookup(dctx, instance)
				cancel()
				if err != nil {
					return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
				}
				c.Address = entry.Addr
				if entry.Info.Transport != "" && !f.Changed("transport") {
					c.Transport = entry.Info.Transport
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Found %q at %s (%s)\n", entry.Instance, entry.Addr, c.Transport)
			}

			w, err := wire()
			if err != nil {
				return err
			}

			res, err := w.Client().Exchange(ctx, c.Address)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fp := crypto.Fingerprint(res.Key)
			fmt.Fprintf(out, "Key exchange with %s complete (%d-bit group)\n", c.Address, res.Params.Bits())
			fmt.Fprintf(out, "Key fingerprint: %s\n", fp)
			if showSecret {
				fmt.Fprintf(out, "Shared secret: %x\n", res.Secret)
				fmt.Fprintf(out, "Session key:   %x\n", res.Key)
			}
			if saveKey != "" {
				rec := store.KeyRecord{
					Key:         res.Key,
					Fingerprint: fp,
					Peer:        c.Address,
					GroupBits:   res.Params.Bits(),
					Created:     time.Now().UTC().Truncate(time.Second),
				}
				if err := store.SaveKey(saveKey, passphrase, rec); err != nil {
					return err
				}
				fmt.Fprintf(out, "Session key sealed to %s\n", saveKey)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&transport, "transport", "", "tcp or kcp")
	f.DurationVar(&timeout, "timeout", 0, "per-message read/write timeout")
	f.IntVar(&minBits, "min-bits", 0, "smallest modulus to accept from the server")
	f.IntVar(&maxBits, "max-bits", 0, "largest modulus to accept from the server (0: no limit)")
	f.BoolVar(&discover, "discover", false, "find the server over mDNS instead of using an address")
	f.StringVar(&instance, "instance", "", "mDNS instance to look for (default: first found)")
	f.BoolVar(&showSecret, "show-secret", false, "print the raw shared secret and session key")
	f.StringVar(&saveKey, "save-key", "", "seal the session key into this file")
	f.StringVar(&passphraseEnv, "passphrase-env", "DHKE_PASSPHRASE", "environment variable holding the key file passphrase")
	return cmd
}
