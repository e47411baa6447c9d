package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jekaa/stm-core/stm"
)

func newInvalidateCommand() *cobra.Command {
	var workers, perWorker int

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Race several writers against one TRef and check no update is lost",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			counter, err := stm.Atomically(ctx, stm.Make(0))
			if err != nil {
				return err
			}
			incr := stm.Update(counter, func(v int) int { return v + 1 })

			var g errgroup.Group
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					for i := 0; i < perWorker; i++ {
						if _, err := stm.Atomically(context.Background(), incr); err != nil {
							return err
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			final, err := stm.Atomically(ctx, stm.Get(counter))
			if err != nil {
				return err
			}
			fmt.Printf("final=%d expected=%d\n", final, workers*perWorker)
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 2, "number of concurrent writers")
	cmd.Flags().IntVar(&perWorker, "per-worker", 1000, "increments per writer")
	return cmd
}
