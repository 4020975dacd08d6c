package classifier

import (
	"context"
	"fmt"
)

const warmUpText = "warm up test"

// WarmUp sends one tiny classification so the backend loads model weights
// before the first real request. At most the first two labels are used.
func WarmUp(ctx context.Context, c Classifier, labels []string) error {
	if len(labels) > 2 {
		labels = labels[:2]
	}
	if len(labels) == 0 {
		return fmt.Errorf("warm up: no labels configured")
	}
	if _, err := c.Classify(ctx, []string{warmUpText}, labels); err != nil {
		return fmt.Errorf("warm up: %w", err)
	}
	return nil
}
