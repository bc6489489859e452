package tidings

import "context"

// Admin is an already authenticated administrator.
type Admin struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

type adminContextKey struct{}

// NewContextWithAdmin returns a copy of ctx carrying admin.
func NewContextWithAdmin(ctx context.Context, admin *Admin) context.Context {
	return context.WithValue(ctx, adminContextKey{}, admin)
}

// AdminFromContext returns the admin stored in ctx, or nil.
func AdminFromContext(ctx context.Context) *Admin {
	admin, _ := ctx.Value(adminContextKey{}).(*Admin)
	return admin
}

// RequireAdmin fails with ErrUnauthorized when admin is absent.
func RequireAdmin(admin *Admin) error {
	if admin == nil {
		return Errorf(ErrUnauthorized, "Admin privileges are required.")
	}
	return nil
}
