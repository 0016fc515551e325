// Package complaint records reports participants file against their partners.
package complaint

import (
	"context"
	"errors"

	"driftchat/backend/internal/config"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/storage"
)

var ErrSelfReport = errors.New("complaint: cannot report yourself")

// Service handles the business logic for complaints.
type Service struct {
	Storage storage.Storage
}

// NewService creates a new complaint service.
func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// NormalizeReason maps unknown severities to "low".
func NormalizeReason(reason string) string {
	if _, ok := config.ReportWeights[reason]; ok {
		return reason
	}
	return "low"
}

// File persists a report from reporter against target.
func (s *Service) File(ctx context.Context, reporter, target models.ParticipantID, room models.RoomToken, reason string) (*models.Report, error) {
	if reporter == target {
		return nil, ErrSelfReport
	}
	report := &models.Report{
		ReporterID: string(reporter),
		TargetID:   string(target),
		RoomToken:  string(room),
		Reason:     NormalizeReason(reason),
		Status:     "new",
	}
	if err := s.Storage.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Recent lists the latest reports.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.Storage.RecentReports(ctx, limit)
}
