package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/store"
)

// Errors carries the engine's public error values.
type Errors struct {
	Validation         func(fields map[string]string) error
	EmailExists        error
	InvalidCredentials error
	EmailNotVerified   error
	NotFound           error
	InvalidToken       error
	TokenExpired       error
	Internal           error
	EngineNotReady     error
}

// Common holds what every flow needs.
type Common struct {
	Store      store.Store
	CheckLimit func(ctx context.Context, endpoint limiters.Endpoint) error
	Now        func() time.Time
	Log        *zap.Logger
	MetricInc  func(int)
	Errors     Errors
}

func normalizeCommon(c *Common) {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.CheckLimit == nil {
		c.CheckLimit = func(context.Context, limiters.Endpoint) error { return nil }
	}
	if c.Errors.Validation == nil {
		c.Errors.Validation = func(map[string]string) error { return errors.New("validation failed") }
	}
}

func (c *Common) ready() bool {
	return c.Store != nil
}

// internal logs err under op and returns it wrapped in Errors.Internal.
// Context cancellation is returned unchanged.
func (c *Common) internal(op string, err error, fields ...zap.Field) error {
	if isContextErr(err) {
		return err
	}
	c.Log.Error("auth flow failed", append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)
	return fmt.Errorf("%w: %s: %v", c.Errors.Internal, op, err)
}

// expired reports whether a token expiring at exp is unusable at now.
func expired(now, exp time.Time) bool {
	return !now.Before(exp)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
