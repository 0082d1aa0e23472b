package service

import "context"

type operatorKey struct{}

// WithOperator tags ctx with the signed-in operator. Journal entries written under ctx
// carry operator_id in their metadata.
func WithOperator(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, operatorKey{}, id)
}

// OperatorFrom returns the operator set by WithOperator.
func OperatorFrom(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(operatorKey{}).(int)
	return id, ok
}
