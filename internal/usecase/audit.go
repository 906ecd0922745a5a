package usecase

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

func writeAudit(ctx context.Context, r repo.TxRepos, actor string, action model.AuditAction, resource model.AuditResourceType, resourceID string, before any, after any, now time.Time) error {
	b, err := json.Marshal(before)
	if err != nil {
		return NewInternal("audit encode failed", err)
	}
	a, err := json.Marshal(after)
	if err != nil {
		return NewInternal("audit encode failed", err)
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
		CreatedAt:    now,
	}); err != nil {
		return NewInternal("db error", err)
	}
	return nil
}

type statusSnapshot struct {
	Status model.CheckoutStatus `json:"status"`
}

func writeTransitionAudit(ctx context.Context, r repo.TxRepos, actor string, checkoutID string, from model.CheckoutStatus, to model.CheckoutStatus, now time.Time) error {
	return writeAudit(ctx, r, actor, model.AuditActionCheckoutTransition, model.AuditResourceCheckout, checkoutID,
		statusSnapshot{Status: from}, statusSnapshot{Status: to}, now)
}

// 監査ログの参照（管理者用）
type AuditQuery struct {
	logs repo.AuditLogRepository
}

func NewAuditQuery(logs repo.AuditLogRepository) *AuditQuery {
	return &AuditQuery{logs: logs}
}

type AuditLogQuery struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func (q *AuditQuery) List(ctx context.Context, in AuditLogQuery) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Offset < 0 {
		return nil, NewValidation(CodeValidation, "limit and offset must be >= 0")
	}
	if in.From != nil && in.To != nil && in.To.Before(*in.From) {
		return nil, NewValidation(CodeValidation, "to must not be before from")
	}
	f := repo.AuditLogFilter{Limit: in.Limit, Offset: in.Offset, CreatedFrom: in.From, CreatedTo: in.To}
	if in.Actor != "" {
		f.Actor = &in.Actor
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		f.ResourceType = &rt
	}
	if in.ResourceID != "" {
		f.ResourceID = &in.ResourceID
	}

	logs, err := q.logs.List(ctx, f)
	if err != nil {
		return nil, NewInternal("db error", err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
