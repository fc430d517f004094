package auth

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated caller id, the token's "sub" claim.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns the caller id, or "" for anonymous requests.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
