package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tvloc02/EventVer1-sub000/internal/apperr"
	"github.com/tvloc02/EventVer1-sub000/internal/validation"
)

type BulkError struct {
	UserID uuid.UUID   `json:"userId"`
	Error  string      `json:"error"`
	Kind   apperr.Kind `json:"kind"`
}

type BulkResult struct {
	Successful   int         `json:"successful"`
	Failed       int         `json:"failed"`
	NotAttempted int         `json:"notAttempted"`
	Errors       []BulkError `json:"errors"`
}

type bulkOutcome struct {
	attempted bool
	err       error
}

// BulkCheckIn checks in each user's registration for eventID independently. Items already applied
// stay applied when ctx is cancelled; the rest are reported as not attempted.
func (t *Tracker) BulkCheckIn(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID, data CheckInData) (BulkResult, error) {
	if len(userIDs) == 0 {
		return BulkResult{}, apperr.Validation("invalid input", apperr.FieldError{Field: "userIds", Error: "userIds is a required field"})
	}
	if err := validation.Check(data); err != nil {
		return BulkResult{}, err
	}
	if _, err := t.findEvent(ctx, eventID); err != nil {
		return BulkResult{}, err
	}

	outcomes := make([]bulkOutcome, len(userIDs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := t.bulk.Concurrency
	if workers > len(userIDs) {
		workers = len(userIDs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = bulkOutcome{attempted: true, err: t.bulkCheckInOne(ctx, eventID, userIDs[i], data)}
			}
		}()
	}

dispatch:
	for i := range userIDs {
		if i > 0 && t.bulk.Throttle > 0 {
			timer := time.NewTimer(t.bulk.Throttle)
			select {
			case <-ctx.Done():
				timer.Stop()
				break dispatch
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	res := BulkResult{Errors: []BulkError{}}
	for i, o := range outcomes {
		switch {
		case !o.attempted:
			res.NotAttempted++
		case o.err != nil:
			res.Failed++
			res.Errors = append(res.Errors, BulkError{UserID: userIDs[i], Error: apperr.Message(o.err), Kind: apperr.KindOf(o.err)})
		default:
			res.Successful++
		}
	}
	if res.NotAttempted > 0 {
		t.log.Info("bulk check-in interrupted", map[string]interface{}{
			"event":        eventID.String(),
			"successful":   res.Successful,
			"failed":       res.Failed,
			"notAttempted": res.NotAttempted,
		})
	}
	return res, nil
}

func (t *Tracker) bulkCheckInOne(ctx context.Context, eventID, userID uuid.UUID, data CheckInData) error {
	reg, err := t.registrations.FindByEventAndUser(ctx, eventID, userID)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("no registration for user %s", userID)
	}
	if err != nil {
		return apperr.Internal(err, "loading registration")
	}
	_, err = t.checkIn(ctx, reg.ID, data, "bulk", nil)
	if apperr.Is(err, apperr.KindInternal) {
		t.log.Error("bulk check-in failed", err, map[string]interface{}{"user": userID.String()})
	}
	return err
}
