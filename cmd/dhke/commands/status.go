package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"dhke/internal/status"
)

func statusCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status <url>",
		Short: "Print the counters of a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			st, err := status.NewHTTP(args[0]).Fetch(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, st.String())
			if st.GroupBits > 0 {
				fmt.Fprintf(w, "group: %d bits\n", st.GroupBits)
			}
			kinds := make([]string, 0, len(st.FailedBy))
			for k := range st.FailedBy {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Fprintf(w, "failed[%s]: %d\n", k, st.FailedBy[k])
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
