package core

import "context"

// UserInfo holds the authenticated user's identity and group memberships.
type UserInfo struct {
	Subject string
	Groups  []string
}

type userInfoKey struct{}

// WithUserInfo stores info in ctx. Adapters that see it act on behalf
// of that user.
func WithUserInfo(ctx context.Context, info UserInfo) context.Context {
	return context.WithValue(ctx, userInfoKey{}, info)
}

// UserInfoFrom retrieves the UserInfo stored by WithUserInfo.
func UserInfoFrom(ctx context.Context) (UserInfo, bool) {
	info, ok := ctx.Value(userInfoKey{}).(UserInfo)
	return info, ok
}
