// Package audit emits append-only JSON audit events enriched with request
// context.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"arcturus.sanger.ac.uk/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	usernameKey  ctxKey = "audit_username"
	tenantKey    ctxKey = "audit_tenant"
)

// WithRequestID attaches the request identifier for audit enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUser attaches the authenticated username for audit enrichment.
func WithUser(ctx context.Context, username string) context.Context {
	username = strings.TrimSpace(username)
	if username == "" {
		return ctx
	}
	return context.WithValue(ctx, usernameKey, username)
}

// WithTenant attaches the tenant identifier for audit enrichment.
func WithTenant(ctx context.Context, tenant string) context.Context {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantKey, tenant)
}

func fromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit entry enriched with request, user and tenant
// context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := fromContext(ctx, requestIDKey); rid != "" {
		entry["request_id"] = rid
	}
	if user := fromContext(ctx, usernameKey); user != "" {
		entry["username"] = user
	}
	if tenant := fromContext(ctx, tenantKey); tenant != "" {
		entry["tenant"] = tenant
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
