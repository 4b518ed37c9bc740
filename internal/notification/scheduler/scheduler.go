// Package scheduler drives date-based notification rules off a daily tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-dispatch/internal/common/logger"
	"whatsapp-dispatch/internal/common/metrics"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/notification"
	"whatsapp-dispatch/internal/notification/rulecache"
)

// RuleSource lists the enabled scheduled rules.
type RuleSource interface {
	ListScheduled(ctx context.Context) ([]*models.Rule, error)
}

// RuleIndex is the cached scheduled-rule list.
type RuleIndex interface {
	Get(ctx context.Context) ([]*models.Rule, error)
	Set(ctx context.Context, rules []*models.Rule) error
}

// DocumentLister finds the record names due on a rule's target date.
type DocumentLister interface {
	NamesDueOn(ctx context.Context, doctype, dateField string, start, end time.Time) ([]string, error)
}

// Dispatcher runs the send pipeline for one rule and one record.
type Dispatcher interface {
	SendToDocument(ctx context.Context, rule *models.Rule, docName string, opts ...notification.SendOption) error
}

// Scheduler evaluates every scheduled rule against the current date and
// dispatches to each matching record. One record failing never stops the
// rest of the run.
type Scheduler struct {
	rules      RuleSource
	index      RuleIndex
	documents  DocumentLister
	dispatcher Dispatcher
	location   *time.Location
	logger     logger.Logger
	now        func() time.Time
}

func New(rules RuleSource, index RuleIndex, documents DocumentLister,
	dispatcher Dispatcher, location *time.Location, log logger.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		rules:      rules,
		index:      index,
		documents:  documents,
		dispatcher: dispatcher,
		location:   location,
		logger:     log.WithFields(map[string]interface{}{"component": "scheduler"}),
		now:        time.Now,
	}
}

// Trigger runs one scheduler pass. The trigger name only labels the run in
// logs; "daily" comes from the ticker, anything else from the HTTP surface.
func (s *Scheduler) Trigger(ctx context.Context, trigger string) error {
	rules, err := s.scheduledRules(ctx)
	if err != nil {
		return err
	}

	today := s.today()
	s.logger.Info("scheduler run started", map[string]interface{}{
		"trigger": trigger,
		"date":    today.Format("2006-01-02"),
		"rules":   len(rules),
	})

	var failed int
	for _, rule := range rules {
		if err := s.runRule(ctx, rule, today); err != nil {
			failed++
			s.logger.WithError(err).Error("scheduled rule run failed", map[string]interface{}{
				"rule": rule.Name,
			})
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scheduled rules failed", failed, len(rules))
	}
	return nil
}

// TriggerNow runs a pass labelled as manually invoked.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.Trigger(ctx, "manual")
}

// Run blocks until ctx is done, firing one pass whenever the local clock
// crosses tickHour.
func (s *Scheduler) Run(ctx context.Context, tickHour int) {
	for {
		next := s.nextTick(tickHour)
		s.logger.Info("scheduler sleeping", map[string]interface{}{
			"until": next.Format(time.RFC3339),
		})

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.Trigger(ctx, "daily"); err != nil {
				s.logger.WithError(err).Error("daily scheduler run failed", nil)
			}
		}
	}
}

func (s *Scheduler) runRule(ctx context.Context, rule *models.Rule, today time.Time) error {
	target := targetDate(rule, today)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, s.location)
	end := time.Date(target.Year(), target.Month(), target.Day(), 23, 59, 59, 0, s.location)

	names, err := s.documents.NamesDueOn(ctx, rule.ReferenceDoctype, rule.DateField, start, end)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	metrics.ScheduledDocuments.WithLabelValues(rule.ReferenceDoctype).Add(float64(len(names)))
	s.logger.Info("scheduled rule matched documents", map[string]interface{}{
		"rule":      rule.Name,
		"doctype":   rule.ReferenceDoctype,
		"documents": len(names),
	})

	var failed int
	for _, name := range names {
		if err := s.dispatcher.SendToDocument(ctx, rule, name); err != nil {
			failed++
			s.logger.WithError(err).Error("scheduled dispatch failed", map[string]interface{}{
				"rule":     rule.Name,
				"document": name,
			})
		}
	}

	if failed > 0 {
		return fmt.Errorf("rule %s: %d of %d documents failed", rule.Name, failed, len(names))
	}
	return nil
}

// targetDate picks the record date a rule fires for today. A "Days Before"
// rule with 3 days in advance matches records dated 3 days from now; a
// "Days After" rule matches records that far in the past.
func targetDate(rule *models.Rule, today time.Time) time.Time {
	days := rule.DaysInAdvance
	if rule.Event == models.EventDaysAfter {
		days = -days
	}
	return today.AddDate(0, 0, days)
}

func (s *Scheduler) scheduledRules(ctx context.Context) ([]*models.Rule, error) {
	if s.index != nil {
		rules, err := s.index.Get(ctx)
		if err == nil {
			return rules, nil
		}
		if !errors.Is(err, rulecache.ErrMiss) {
			s.logger.WithError(err).Warn("rule cache unavailable", nil)
		}
	}

	rules, err := s.rules.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scheduled rules: %w", err)
	}

	if s.index != nil {
		if err := s.index.Set(ctx, rules); err != nil {
			s.logger.WithError(err).Warn("rule cache refresh failed", nil)
		}
	}
	return rules, nil
}

func (s *Scheduler) today() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

func (s *Scheduler) nextTick(tickHour int) time.Time {
	now := s.now().In(s.location)
	next := time.Date(now.Year(), now.Month(), now.Day(), tickHour, 0, 0, 0, s.location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
