package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldvisit/backend/internal/models"
)

// DefaultSkipReason substitutes a skip with no reason supplied.
const DefaultSkipReason = "No reason provided"

// StartVisit moves a visit to in_progress. Pending visits start fresh;
// skipped visits are reinstated with end_time and skip_reason cleared.
// Starting an already running visit is an idempotent no-op. Completed
// visits are immutable.
func StartVisit(v models.Visit, now time.Time) (models.Visit, error) {
	switch v.Status {
	case models.VisitInProgress:
		return v, nil
	case models.VisitPending:
		v.Status = models.VisitInProgress
		v.StartTime = &now
		return v, nil
	case models.VisitSkipped:
		v.Status = models.VisitInProgress
		v.StartTime = &now
		v.EndTime = nil
		v.SkipReason = nil
		return v, nil
	case models.VisitCompleted:
		return v, fmt.Errorf("%w: visit %s already completed", ErrInvalidTransition, v.ID)
	default:
		return v, fmt.Errorf("%w: visit %s in unknown state %q", ErrInvalidTransition, v.ID, v.Status)
	}
}

// CompleteVisit finishes an in_progress visit. Duration is taken from the
// payload when supplied, otherwise derived from start and end times; it must
// be non-negative either way.
func CompleteVisit(v models.Visit, now time.Time, durationMin *int) (models.Visit, error) {
	if v.Status != models.VisitInProgress {
		return v, fmt.Errorf("%w: cannot complete visit %s from %q", ErrInvalidTransition, v.ID, v.Status)
	}

	var duration int
	if durationMin != nil {
		if *durationMin < 0 {
			return v, fmt.Errorf("%w: duration must be non-negative", ErrMissingRequiredField)
		}
		duration = *durationMin
	} else if v.StartTime != nil {
		duration = int(now.Sub(*v.StartTime).Minutes())
		if duration < 0 {
			duration = 0
		}
	}

	v.Status = models.VisitCompleted
	v.EndTime = &now
	v.ActualDurationMin = &duration
	return v, nil
}

// SkipVisit marks a pending or running visit as skipped. A blank reason is
// replaced with DefaultSkipReason. Skipped is not terminal; StartVisit
// reinstates it.
func SkipVisit(v models.Visit, now time.Time, reason string) (models.Visit, error) {
	if v.Status != models.VisitPending && v.Status != models.VisitInProgress {
		return v, fmt.Errorf("%w: cannot skip visit %s from %q", ErrInvalidTransition, v.ID, v.Status)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultSkipReason
	}

	v.Status = models.VisitSkipped
	v.EndTime = &now
	v.SkipReason = &reason
	return v, nil
}
