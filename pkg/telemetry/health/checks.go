package health

import (
	"context"
	"fmt"
)

// ProvidersCheck fails when fewer than min providers are selectable.
// available returns the IDs of the providers that may currently be selected.
func ProvidersCheck(min int, available func() []string) CheckFunc {
	return func(context.Context) error {
		ids := available()
		if len(ids) < min {
			return fmt.Errorf("%d providers available, need %d", len(ids), min)
		}
		return nil
	}
}

// StorageCheck fails when the usage store cannot be queried.
func StorageCheck(count func(ctx context.Context) (int64, error)) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := count(ctx); err != nil {
			return fmt.Errorf("usage store: %w", err)
		}
		return nil
	}
}
