package utils

import (
	"context"
)

type CustomContext struct {
	AppSource string
	UserId    string
	AccountId string
	RunId     string
}

type customContextKey struct{}

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey{}, customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey{}).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetUserIdFromContext(ctx context.Context) string {
	return GetContext(ctx).UserId
}

func GetAccountIdFromContext(ctx context.Context) string {
	return GetContext(ctx).AccountId
}

func GetRunIdFromContext(ctx context.Context) string {
	return GetContext(ctx).RunId
}

// WithAccount copies the current custom context and sets the account scope on it.
func WithAccount(ctx context.Context, userId, accountId string) context.Context {
	customContext := *GetContext(ctx)
	customContext.UserId = userId
	customContext.AccountId = accountId
	return WithCustomContext(ctx, &customContext)
}

func SetAppSourceInContext(ctx context.Context, appSource string) context.Context {
	customContext := *GetContext(ctx)
	customContext.AppSource = appSource
	return WithCustomContext(ctx, &customContext)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	customContext := *GetContext(ctx)
	customContext.RunId = runId
	return WithCustomContext(ctx, &customContext)
}
