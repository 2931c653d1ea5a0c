package entry

import (
	"context"
	"errors"
	"time"
)

// Outcome is the terminal classification of one scan attempt.
type Outcome string

const (
	OutcomeNotFound  Outcome = "not_found"
	OutcomeInactive  Outcome = "inactive"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFresh     Outcome = "fresh"
)

// Store is the persistence surface the scan workflow needs.
// *Repository satisfies it.
type Store interface {
	UserByTag(ctx context.Context, tag string) (*User, error)
	LastSuccessSince(ctx context.Context, userID string, since time.Time) (*Entry, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	InsertSuccessIfFresh(ctx context.Context, userID, method string, at, since time.Time) (*Entry, error)
}

// Validation is the Tag Validator result.
type Validation struct {
	Outcome   Outcome
	User      *User
	LastEntry time.Time
}

// ScanResult is the full scan orchestration result.
type ScanResult struct {
	Outcome   Outcome
	User      *User
	Entry     *Entry
	LastEntry time.Time
}

// Service coordinates tag validation, deduplication and entry recording.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// NewService creates a service backed by a store. window is the
// trailing duplicate-detection period.
func NewService(store Store, window time.Duration) *Service {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Service{store: store, window: window, now: time.Now}
}

// ValidateTag classifies a tag. The user lookup is status-blind so a
// deactivated cardholder is reported as inactive, not missing.
func (s *Service) ValidateTag(ctx context.Context, tag string) (Validation, error) {
	if tag == "" {
		return Validation{}, errors.New("rfid tag required")
	}
	user, err := s.store.UserByTag(ctx, tag)
	if err != nil {
		return Validation{}, err
	}
	if user == nil {
		return Validation{Outcome: OutcomeNotFound}, nil
	}
	if user.Status != UserActive {
		return Validation{Outcome: OutcomeInactive, User: user}, nil
	}

	since := s.now().Add(-s.window)
	recent, err := s.store.LastSuccessSince(ctx, user.UserID, since)
	if err != nil {
		return Validation{}, err
	}
	if recent != nil {
		return Validation{Outcome: OutcomeDuplicate, User: user, LastEntry: recent.EntryTimestamp}, nil
	}
	return Validation{Outcome: OutcomeFresh, User: user}, nil
}

// Record appends one entry event. The caller has already established
// that the user exists and which status applies.
func (s *Service) Record(ctx context.Context, userID, method, status string) (Entry, error) {
	return s.store.InsertEntry(ctx, Entry{
		UserID:         userID,
		EntryTimestamp: s.now().UTC(),
		EntryMethod:    method,
		Status:         status,
	})
}

// Scan runs the full workflow for one tag: validate, then record a
// success or duplicate row. NOT_FOUND and INACTIVE produce no row.
//
// The success insert is conditional on no success landing inside the
// window, so two concurrent scans of one tag cannot both record
// success; the loser is reclassified as a duplicate.
func (s *Service) Scan(ctx context.Context, tag string) (ScanResult, error) {
	v, err := s.ValidateTag(ctx, tag)
	if err != nil {
		return ScanResult{}, err
	}

	switch v.Outcome {
	case OutcomeNotFound, OutcomeInactive:
		return ScanResult{Outcome: v.Outcome, User: v.User}, nil

	case OutcomeDuplicate:
		e, err := s.Record(ctx, v.User.UserID, MethodRFID, StatusDuplicate)
		if err != nil {
			return ScanResult{}, err
		}
		return ScanResult{Outcome: OutcomeDuplicate, User: v.User, Entry: &e, LastEntry: v.LastEntry}, nil
	}

	now := s.now().UTC()
	inserted, err := s.store.InsertSuccessIfFresh(ctx, v.User.UserID, MethodRFID, now, now.Add(-s.window))
	if err != nil {
		return ScanResult{}, err
	}
	if inserted == nil {
		// Lost the race: another scan recorded success after our check.
		recent, err := s.store.LastSuccessSince(ctx, v.User.UserID, now.Add(-s.window))
		if err != nil {
			return ScanResult{}, err
		}
		last := now
		if recent != nil {
			last = recent.EntryTimestamp
		}
		e, err := s.Record(ctx, v.User.UserID, MethodRFID, StatusDuplicate)
		if err != nil {
			return ScanResult{}, err
		}
		return ScanResult{Outcome: OutcomeDuplicate, User: v.User, Entry: &e, LastEntry: last}, nil
	}
	return ScanResult{Outcome: OutcomeFresh, User: v.User, Entry: inserted}, nil
}
