package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthMiddleware trusts the identity headers the edge gateway stamps after
// validating the session token. A request without them never reaches a
// handler.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") || strings.TrimPrefix(authz, "Bearer ") == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}

		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user identity")
			return
		}

		ctx := context.WithValue(r.Context(), "user_id", userID)
		// customer id is optional: users without a processor profile yet
		if customerID := r.Header.Get("X-Customer-ID"); customerID != "" {
			ctx = context.WithValue(ctx, "customer_id", customerID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserID(ctx context.Context) string {
	if userID, ok := ctx.Value("user_id").(string); ok {
		return userID
	}
	return ""
}

func getCustomerID(ctx context.Context) string {
	if customerID, ok := ctx.Value("customer_id").(string); ok {
		return customerID
	}
	return ""
}
