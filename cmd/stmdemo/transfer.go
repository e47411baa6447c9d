package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jekaa/stm-core/stm"
)

func newTransferCommand() *cobra.Command {
	var transfers int

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Run N concurrent atomic transfers between two TRefs and check the invariant holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := stm.Atomically(ctx, stm.Make(100))
			if err != nil {
				return err
			}
			b, err := stm.Atomically(ctx, stm.Make(0))
			if err != nil {
				return err
			}

			moveOne := stm.FlatMap(stm.Get(a), func(av int) stm.STM[stm.Unit] {
				return stm.FlatMap(stm.Set(a, av-1), func(stm.Unit) stm.STM[stm.Unit] {
					return stm.FlatMap(stm.Get(b), func(bv int) stm.STM[stm.Unit] {
						return stm.Set(b, bv+1)
					})
				})
			})

			var g errgroup.Group
			for i := 0; i < transfers; i++ {
				g.Go(func() error {
					_, err := stm.Atomically(context.Background(), moveOne)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			finalA, err := stm.Atomically(ctx, stm.Get(a))
			if err != nil {
				return err
			}
			finalB, err := stm.Atomically(ctx, stm.Get(b))
			if err != nil {
				return err
			}

			fmt.Printf("A=%d B=%d A+B=%d\n", finalA, finalB, finalA+finalB)
			return nil
		},
	}

	cmd.Flags().IntVar(&transfers, "transfers", 10000, "number of concurrent transfers to run")
	return cmd
}
