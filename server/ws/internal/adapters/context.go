// SPDX-License-Identifier: ice License 1.0

package adapters

import (
	"context"
)

// NewCustomCancelContext derives a context that is done once ch is closed,
// independent of whether the parent (usually the hijacked request's context) is still alive.
// Values are still resolved through the parent.
func NewCustomCancelContext(ctx context.Context, ch <-chan struct{}) context.Context {
	return &customCancelContext{Context: context.WithoutCancel(ctx), ch: ch}
}

func (c *customCancelContext) Done() <-chan struct{} {
	return c.ch
}

func (c *customCancelContext) Err() error {
	select {
	case <-c.ch:
		return context.Canceled
	default:
		return nil
	}
}
