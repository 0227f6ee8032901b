package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyeonwkim/passdir/internal/domain/model"
	"github.com/hyeonwkim/passdir/internal/domain/port/driven"
)

// MemberService manages the membership roster behind group resolution.
// Mutations write through to the upstream record store and invalidate the
// member snapshot so the change is observed on the next read.
type MemberService struct {
	catalog   *Catalog
	source    driven.RecordSource
	auditLogs driven.AuditLogStore
	logger    *slog.Logger
}

// NewMemberService creates a MemberService.
func NewMemberService(catalog *Catalog, source driven.RecordSource, auditLogs driven.AuditLogStore, logger *slog.Logger) *MemberService {
	return &MemberService{catalog: catalog, source: source, auditLogs: auditLogs, logger: logger}
}

// Members returns the current membership snapshot.
func (s *MemberService) Members(ctx context.Context) []model.Member {
	return s.catalog.Members(ctx)
}

// AddMember appends an (email, group) row upstream and records the action.
func (s *MemberService) AddMember(ctx context.Context, adminEmail, ip, email, group string) error {
	if err := s.source.AddMember(ctx, email, group); err != nil {
		return fmt.Errorf("adding member: %w", err)
	}
	s.catalog.InvalidateMembers()

	s.audit(ctx, model.AdminActionLog{
		Timestamp:  time.Now().UTC(),
		AdminEmail: adminEmail,
		Action:     model.ActionMemberAdd,
		Target:     email + "/" + group,
		IP:         ip,
	})
	return nil
}

// DeleteMember removes the matching (email, group) row upstream and records
// the action.
func (s *MemberService) DeleteMember(ctx context.Context, adminEmail, ip, email, group string) error {
	if err := s.source.RemoveMember(ctx, email, group); err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	s.catalog.InvalidateMembers()

	s.audit(ctx, model.AdminActionLog{
		Timestamp:  time.Now().UTC(),
		AdminEmail: adminEmail,
		Action:     model.ActionMemberDelete,
		Target:     email + "/" + group,
		IP:         ip,
	})
	return nil
}

func (s *MemberService) audit(ctx context.Context, entry model.AdminActionLog) {
	if err := s.auditLogs.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit log", "action", entry.Action, "error", err)
	}
}
