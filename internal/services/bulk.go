package services

import (
	"context"
	"time"

	"lending/internal/domain"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type BulkItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

type BulkResult struct {
	Results   []BulkItemResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

func (r *BulkResult) add(id string, err error) {
	item := BulkItemResult{ID: id, Success: err == nil}
	if err != nil {
		item.Error = domain.ReasonOf(err)
		if kind, ok := domain.KindOf(err); ok {
			item.Kind = string(kind)
		}
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Results = append(r.Results, item)
}

// BulkApprove approves each request in its own unit of work. One failure does
// not affect the others.
func (s *CreditService) BulkApprove(ctx context.Context, ids []string, approverID string) BulkResult {
	ctx, done := observe(ctx, "credit.bulk_approve", attribute.Int("items", len(ids)))
	defer done(nil)
	return s.bulk(ctx, ids, func(id string) error {
		_, err := s.decide(ctx, id, approverID, "credit.approve", func(c *domain.CreditRequest, now time.Time) error {
			return c.Approve(approverID, nil, now)
		})
		return err
	})
}

func (s *CreditService) BulkReject(ctx context.Context, ids []string, rejectedBy, reason string) BulkResult {
	ctx, done := observe(ctx, "credit.bulk_reject", attribute.Int("items", len(ids)))
	defer done(nil)
	return s.bulk(ctx, ids, func(id string) error {
		_, err := s.decide(ctx, id, rejectedBy, "credit.reject", func(c *domain.CreditRequest, now time.Time) error {
			return c.Reject(rejectedBy, reason, now)
		})
		return err
	})
}

// SweepOverdue defaults up to limit active requests whose due date has passed.
func (s *CreditService) SweepOverdue(ctx context.Context, limit int) (result BulkResult, err error) {
	ctx, done := observe(ctx, "credit.sweep_overdue")
	defer func() { done(err) }()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.credits.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return BulkResult{}, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	result = s.bulk(ctx, ids, func(id string) error {
		_, err := s.decide(ctx, id, SystemActor, "credit.default", func(c *domain.CreditRequest, now time.Time) error {
			return c.MarkDefaulted(now)
		})
		return err
	})
	return result, nil
}

func (s *CreditService) bulk(ctx context.Context, ids []string, apply func(id string) error) BulkResult {
	result := BulkResult{Results: make([]BulkItemResult, 0, len(ids))}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if err := ctx.Err(); err != nil {
			result.add(id, err)
			continue
		}
		result.add(id, apply(id))
	}
	s.log.WithFields(logrus.Fields{"succeeded": result.Succeeded, "failed": result.Failed}).Info("bulk credit operation finished")
	return result
}
