package context

import (
	"context"
	"strings"
)

// Operator identifies who triggered a request. There is no login in this
// service, so the value comes from the X-Operator header and is used only
// for audit entries and logs.
type Operator struct {
	Name string
}

type operatorKey struct{}

// WithOperator adds Operator to context.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// GetOperator returns Operator from context.
func GetOperator(ctx context.Context) *Operator {
	if v, ok := ctx.Value(operatorKey{}).(*Operator); ok {
		return v
	}
	return nil
}

// GetOperatorName returns the operator name or "sistema" when unknown.
func GetOperatorName(ctx context.Context) string {
	if op := GetOperator(ctx); op != nil && strings.TrimSpace(op.Name) != "" {
		return op.Name
	}
	return "sistema"
}
