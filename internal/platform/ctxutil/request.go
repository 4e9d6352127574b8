package ctxutil

import "context"

type requestDataKey struct{}

// RequestData is the caller identity resolved from the bearer credential.
type RequestData struct {
	TokenString string
	UserID      string
	// AuthErr is why UserID is empty when a credential was rejected or absent.
	AuthErr error
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// UserID returns the resolved user id, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return ""
}
