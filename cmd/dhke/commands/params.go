package commands

import (
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/store"
)

func paramsCmd() *cobra.Command {
	var (
		group int
		bits  int
		out   string
		check string
	)
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print, generate or check Diffie-Hellman parameters",
		Long: `Print a well-known MODP group (--group), generate a fresh group (--bits),
or check an existing parameter file (--check). --out writes the printed or
generated group to a file a server can load with --source file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			w := cmd.OutOrStdout()

			if f.Changed("check") {
				params, err := store.LoadParams(check)
				if err != nil {
					return err
				}
				describe(w, check, params)
				engine := crypto.NewEngine(crypto.WithMinBits(crypto.MinGenerateBits), crypto.WithMaxBits(0))
				if err := engine.ValidateParameters(params); err != nil {
					return err
				}
				fmt.Fprintln(w, "OK")
				return nil
			}

			var (
				params domain.Params
				label  string
				err    error
			)
			switch {
			case f.Changed("bits") && f.Changed("group"):
				return fmt.Errorf("--bits and --group are mutually exclusive")
			case f.Changed("bits"):
				params, err = crypto.NewEngine().GenerateParameters(bits)
				label = "generated"
			default:
				params, err = crypto.Group(group)
				label = fmt.Sprintf("modp-%d", group)
			}
			if err != nil {
				return err
			}
			describe(w, label, params)
			if out != "" {
				if err := store.SaveParams(out, params, label); err != nil {
					return err
				}
				fmt.Fprintf(w, "Written to %s\n", out)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&group, "group", crypto.DefaultGroup, "MODP group id (1, 2, 5, 14)")
	f.IntVar(&bits, "bits", 0, "generate a fresh group with a prime of this many bits")
	f.StringVarP(&out, "out", "o", "", "write the group to this JSON file")
	f.StringVar(&check, "check", "", "validate a parameter file")
	return cmd
}

func describe(w io.Writer, label string, p domain.Params) {
	fmt.Fprintf(w, "Group:     %s\n", label)
	fmt.Fprintf(w, "Bits:      %d\n", p.Bits())
	fmt.Fprintf(w, "Generator: %s\n", p.G)
	fmt.Fprintf(w, "Prime:     %t\n", p.P.ProbablyPrime(20))
	q := new(big.Int).Rsh(p.P, 1)
	fmt.Fprintf(w, "Safe:      %t\n", q.ProbablyPrime(20))
	fmt.Fprintf(w, "p:         %s\n", p.P.Text(16))
}
