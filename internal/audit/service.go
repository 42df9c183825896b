// Package audit records who changed pricing configuration and when.
// Entries are written after the admin request finishes and never block
// the response.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/obs"
	"github.com/noah-isme/backend-confero/internal/tenant"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindOrganizer represents an authenticated organizer.
	ActorKindOrganizer ActorKind = "organizer"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind    ActorKind
	ActorID *uuid.UUID
}

// Entry is one stored audit log row.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     *uuid.UUID      `json:"tenantId,omitempty"`
	ActorKind    string          `json:"actorKind"`
	ActorID      *uuid.UUID      `json:"actorId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   *string         `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int32           `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	RequestID    *string         `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    string          `json:"createdAt"`
}

// Store persists audit entries.
type Store interface {
	InsertAuditLog(ctx context.Context, entry Entry) (Entry, error)
	ListAuditLogs(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]Entry, error)
}

// Service persists audit logs for admin flows.
type Service struct {
	Store   Store
	Enabled bool
}

// Record persists an audit log entry when auditing is enabled. The
// tenant and actor are taken from the request context.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}

	entry := Entry{
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		ActorID:      actor.ActorID,
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   optString(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       int32(status),
		IP:           optString(common.ClientIP(req)),
		RequestID:    optString(req.Header.Get("X-Request-ID")),
		Metadata:     metadata,
	}
	if raw, ok := tenant.From(ctx); ok {
		if tid, err := uuid.Parse(raw); err == nil {
			entry.TenantID = &tid
		}
	}
	_, err := s.Store.InsertAuditLog(ctx, entry)
	return err
}

func buildAction(action, method, route string) string {
	trimmed := strings.TrimSpace(action)
	if trimmed != "" {
		return trimmed
	}
	target := route
	if target == "" {
		target = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + target
}

func buildResource(resourceType, route string) string {
	trimmed := strings.TrimSpace(resourceType)
	if trimmed != "" {
		return trimmed
	}
	route = strings.Trim(route, " /")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(route, "/", ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindOrganizer, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func optString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
