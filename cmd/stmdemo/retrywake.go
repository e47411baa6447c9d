package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jekaa/stm-core/stm"
)

func newRetryWakeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-wake",
		Short: "Block on a TRef predicate and wake up once another fiber sets it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ref, err := stm.Atomically(ctx, stm.Make(0))
			if err != nil {
				return err
			}

			result := make(chan int, 1)
			errs := make(chan error, 1)
			go func() {
				v, err := stm.Atomically(context.Background(), stm.Filter(stm.Get(ref), func(v int) bool { return v == 1 }))
				if err != nil {
					errs <- err
					return
				}
				result <- v
			}()

			time.Sleep(50 * time.Millisecond)
			if _, err := stm.Atomically(ctx, stm.Set(ref, 1)); err != nil {
				return err
			}

			select {
			case v := <-result:
				fmt.Printf("fiber woke with r=%d\n", v)
			case err := <-errs:
				return err
			case <-time.After(2 * time.Second):
				return fmt.Errorf("timed out waiting for retry to wake")
			}
			return nil
		},
	}
}
