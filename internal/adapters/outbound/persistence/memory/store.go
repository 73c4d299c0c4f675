// Package memory is the development and test store. One mutex guards all
// state; the postgres adapter is the production path.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"depositgate/internal/application/dto"
	portsout "depositgate/internal/application/ports/out"
	"depositgate/internal/domain/entities"
	valueobjects "depositgate/internal/domain/value_objects"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type poolEntry struct {
	entities.PoolAddress
	insertSeq int
}

type depositEntry struct {
	id                     string
	amountMinor            string
	asset                  string
	address                string
	state                  string
	confirmationsObserved  int
	lastCheckedBlockHeight int64
	nextPollAt             time.Time
	pollBackoffSeconds     int
	leaseOwner             string
	leaseUntil             time.Time
	createdAt              time.Time
	expiresAt              time.Time
}

type eventEntry struct {
	dto.PendingOutboxEvent
	status        string
	nextAttemptAt time.Time
	leaseOwner    string
	leaseUntil    time.Time
	createdAt     time.Time
}

type Store struct {
	mu sync.Mutex

	addresses map[string]*poolEntry
	deposits  map[string]*depositEntry
	// observations indexes recorded transfers by deposit id then tx hash.
	observations map[string]map[string]entities.ChainObservation
	events       []*eventEntry
	eventSeq     int64
	insertSeq    int

	derivationNext uint32
	maxAttempts    int
}

var (
	_ portsout.AddressPoolRepository = (*Store)(nil)
	_ portsout.DepositRepository     = (*Store)(nil)
	_ portsout.EventOutboxRepository = (*Store)(nil)
)

func NewStore(maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &Store{
		addresses:    map[string]*poolEntry{},
		deposits:     map[string]*depositEntry{},
		observations: map[string]map[string]entities.ChainObservation{},
		maxAttempts:  maxAttempts,
	}
}

func (s *Store) AllocateOldestAvailable(
	_ context.Context,
	depositID string,
	now time.Time,
) (dto.AllocatedAddress, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*poolEntry, 0, len(s.addresses))
	for _, entry := range s.addresses {
		if !entry.Assignable(now) {
			continue
		}
		candidates = append(candidates, entry)
	}
	if len(candidates) == 0 {
		return dto.AllocatedAddress{}, apperrors.NewExhausted(
			"pool_exhausted",
			"no deposit address is currently available",
			nil,
		)
	}

	// Never-released first, then oldest release, then insertion order.
	sort.Slice(candidates, func(i, j int) bool {
		left, right := candidates[i], candidates[j]
		switch {
		case left.LastReleasedAt == nil && right.LastReleasedAt != nil:
			return true
		case left.LastReleasedAt != nil && right.LastReleasedAt == nil:
			return false
		case left.LastReleasedAt != nil && right.LastReleasedAt != nil &&
			!left.LastReleasedAt.Equal(*right.LastReleasedAt):
			return left.LastReleasedAt.Before(*right.LastReleasedAt)
		default:
			return left.insertSeq < right.insertSeq
		}
	})

	winner := candidates[0]
	id := strings.TrimSpace(depositID)
	assignedAt := now.UTC()
	winner.Status = valueobjects.AddressStatusAssigned
	winner.AssignedDepositID = &id
	winner.AssignedAt = &assignedAt
	winner.CooldownUntil = nil
	winner.UsageCount++

	return dto.AllocatedAddress{
		Address:    winner.Address,
		AssignedAt: assignedAt,
		UsageCount: winner.UsageCount,
	}, nil
}

func (s *Store) MarkMonitoring(_ context.Context, address string) (bool, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.addresses[strings.TrimSpace(address)]
	if !exists || entry.Status != valueobjects.AddressStatusAssigned {
		return false, nil
	}
	entry.Status = valueobjects.AddressStatusMonitoring
	return true, nil
}

func (s *Store) BeginCooldown(_ context.Context, address string, until time.Time) (bool, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.addresses[strings.TrimSpace(address)]
	if !exists ||
		(entry.Status != valueobjects.AddressStatusAssigned && entry.Status != valueobjects.AddressStatusMonitoring) {
		return false, nil
	}
	cooldownUntil := until.UTC()
	entry.Status = valueobjects.AddressStatusCooldown
	entry.CooldownUntil = &cooldownUntil
	entry.AssignedAt = nil
	return true, nil
}

func (s *Store) Release(_ context.Context, address string, now time.Time) *apperrors.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.addresses[strings.TrimSpace(address)]
	if !exists || entry.Status != valueobjects.AddressStatusCooldown {
		return apperrors.NewConflict(
			"not_assigned",
			"address is not in cooldown",
			map[string]any{"address": address},
		)
	}
	s.releaseLocked(entry, now)
	return nil
}

func (s *Store) ReleaseCooldownLapsed(_ context.Context, now time.Time) ([]dto.ReleasedAddress, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := []dto.ReleasedAddress{}
	for _, entry := range s.addresses {
		if entry.Status != valueobjects.AddressStatusCooldown ||
			entry.CooldownUntil == nil || entry.CooldownUntil.After(now) {
			continue
		}
		depositID := ""
		if entry.AssignedDepositID != nil {
			depositID = *entry.AssignedDepositID
		}
		s.releaseLocked(entry, now)
		released = append(released, dto.ReleasedAddress{Address: entry.Address, DepositID: depositID})
	}
	sort.Slice(released, func(i, j int) bool { return released[i].Address < released[j].Address })
	return released, nil
}

func (s *Store) releaseLocked(entry *poolEntry, now time.Time) {
	releasedAt := now.UTC()
	entry.Status = valueobjects.AddressStatusAvailable
	entry.AssignedDepositID = nil
	entry.CooldownUntil = nil
	entry.LastReleasedAt = &releasedAt
}

func (s *Store) RecoverStuckAssignments(
	_ context.Context,
	now time.Time,
	cooldown time.Duration,
) (int, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recovered := 0
	for _, entry := range s.addresses {
		if entry.Status != valueobjects.AddressStatusAssigned &&
			entry.Status != valueobjects.AddressStatusMonitoring {
			continue
		}
		if entry.AssignedDepositID == nil {
			continue
		}
		deposit, exists := s.deposits[*entry.AssignedDepositID]
		if !exists || !isTerminalState(deposit.state) {
			continue
		}
		cooldownUntil := now.UTC().Add(cooldown)
		entry.Status = valueobjects.AddressStatusCooldown
		entry.CooldownUntil = &cooldownUntil
		entry.AssignedAt = nil
		recovered++
	}
	return recovered, nil
}

func (s *Store) InsertAvailable(
	_ context.Context,
	addresses []string,
	now time.Time,
) (int, int, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, address := range addresses {
		if _, exists := s.addresses[address]; exists {
			continue
		}
		poolAddress, appErr := entities.NewAvailableAddress(address, now.UTC())
		if appErr != nil {
			return added, len(addresses) - added, appErr
		}
		s.insertSeq++
		s.addresses[poolAddress.Address] = &poolEntry{
			PoolAddress: poolAddress,
			insertSeq:   s.insertSeq,
		}
		added++
	}
	return added, len(addresses) - added, nil
}

func (s *Store) Counts(_ context.Context, _ time.Time) (dto.PoolCounts, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := dto.PoolCounts{Total: len(s.addresses)}
	for _, entry := range s.addresses {
		switch entry.Status {
		case valueobjects.AddressStatusAvailable:
			counts.Available++
		case valueobjects.AddressStatusAssigned:
			counts.Assigned++
		case valueobjects.AddressStatusMonitoring:
			counts.Monitoring++
		case valueobjects.AddressStatusCooldown:
			counts.Cooldown++
		}
	}
	return counts, nil
}

func (s *Store) ReserveDerivationIndexes(_ context.Context, count int) (uint32, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reserved := s.derivationNext
	s.derivationNext += uint32(count)
	return reserved, nil
}

func (s *Store) Create(_ context.Context, deposit entities.DepositRequest) *apperrors.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deposits[deposit.ID]; exists {
		return apperrors.NewConflict(
			"deposit_exists",
			"deposit id already exists",
			map[string]any{"id": deposit.ID},
		)
	}
	s.deposits[deposit.ID] = &depositEntry{
		id:          deposit.ID,
		amountMinor: deposit.AmountMinor,
		asset:       deposit.Asset,
		address:     deposit.Address,
		state:       deposit.State.String(),
		nextPollAt:  deposit.CreatedAt.UTC(),
		createdAt:   deposit.CreatedAt.UTC(),
		expiresAt:   deposit.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (dto.DepositResource, bool, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.deposits[strings.TrimSpace(id)]
	if !exists {
		return dto.DepositResource{}, false, nil
	}
	return dto.DepositResource{
		ID:                    entry.id,
		Address:               entry.address,
		AmountMinor:           entry.amountMinor,
		Asset:                 entry.asset,
		State:                 entry.state,
		ConfirmationsObserved: entry.confirmationsObserved,
		CreatedAt:             entry.createdAt,
		ExpiresAt:             entry.expiresAt,
	}, true, nil
}

func (s *Store) ClaimMonitorable(
	_ context.Context,
	now time.Time,
	limit int,
	leaseOwner string,
	leaseUntil time.Time,
) ([]dto.MonitorableDeposit, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*depositEntry, 0, limit)
	for _, entry := range s.deposits {
		if isTerminalState(entry.state) {
			continue
		}
		if entry.nextPollAt.After(now) {
			continue
		}
		if entry.leaseOwner != "" && entry.leaseUntil.After(now) {
			continue
		}
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].nextPollAt.Equal(candidates[j].nextPollAt) {
			return candidates[i].nextPollAt.Before(candidates[j].nextPollAt)
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]dto.MonitorableDeposit, 0, len(candidates))
	for _, entry := range candidates {
		entry.leaseOwner = strings.TrimSpace(leaseOwner)
		entry.leaseUntil = leaseUntil.UTC()
		claimed = append(claimed, dto.MonitorableDeposit{
			ID:                     entry.id,
			Address:                entry.address,
			AmountMinor:            entry.amountMinor,
			Asset:                  entry.asset,
			State:                  entry.state,
			ConfirmationsObserved:  entry.confirmationsObserved,
			LastCheckedBlockHeight: entry.lastCheckedBlockHeight,
			PollBackoffSeconds:     entry.pollBackoffSeconds,
			ExpiresAt:              entry.expiresAt,
		})
	}
	return claimed, nil
}

func (s *Store) ApplyObservation(
	_ context.Context,
	depositID string,
	observation entities.ChainObservation,
	advanceHeight bool,
) (dto.ApplyObservationResult, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.deposits[strings.TrimSpace(depositID)]
	if !exists {
		return dto.ApplyObservationResult{}, apperrors.NewNotFound(
			"deposit_not_found",
			"deposit request was not found",
			map[string]any{"id": depositID},
		)
	}

	byHash, exists := s.observations[entry.id]
	if !exists {
		byHash = map[string]entities.ChainObservation{}
		s.observations[entry.id] = byHash
	}
	previous, seen := byHash[observation.TxHash]
	if seen && previous.Confirmations > observation.Confirmations {
		observation.Confirmations = previous.Confirmations
	}
	byHash[observation.TxHash] = observation

	if observation.Confirmations > entry.confirmationsObserved {
		entry.confirmationsObserved = observation.Confirmations
	}
	if advanceHeight && observation.BlockHeight > entry.lastCheckedBlockHeight {
		entry.lastCheckedBlockHeight = observation.BlockHeight
	}

	return dto.ApplyObservationResult{
		Applied:               !seen,
		ConfirmationsObserved: entry.confirmationsObserved,
	}, nil
}

func (s *Store) TransitionStateIfCurrent(
	_ context.Context,
	id string,
	currentState string,
	nextState string,
	_ time.Time,
	leaseOwner string,
) (bool, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.deposits[strings.TrimSpace(id)]
	if !exists || entry.state != currentState {
		return false, nil
	}
	if entry.leaseOwner != "" && entry.leaseOwner != strings.TrimSpace(leaseOwner) {
		return false, nil
	}
	entry.state = nextState
	return true, nil
}

func (s *Store) SchedulePoll(
	_ context.Context,
	id string,
	schedule dto.PollSchedule,
	leaseOwner string,
) *apperrors.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.deposits[strings.TrimSpace(id)]
	if !exists {
		return nil
	}
	if entry.leaseOwner != "" && entry.leaseOwner != strings.TrimSpace(leaseOwner) {
		return nil
	}
	entry.nextPollAt = schedule.NextPollAt.UTC()
	entry.pollBackoffSeconds = schedule.PollBackoffSeconds
	entry.leaseOwner = ""
	entry.leaseUntil = time.Time{}
	return nil
}

func (s *Store) Enqueue(_ context.Context, command dto.EnqueueEventCommand) (bool, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.events {
		if event.DepositID == command.DepositID && event.EventType == command.EventType {
			return false, nil
		}
	}

	s.eventSeq++
	s.events = append(s.events, &eventEntry{
		PendingOutboxEvent: dto.PendingOutboxEvent{
			ID:          s.eventSeq,
			EventID:     command.EventID,
			EventType:   command.EventType,
			DepositID:   command.DepositID,
			Payload:     command.Payload,
			MaxAttempts: s.maxAttempts,
		},
		status:        "pending",
		nextAttemptAt: command.Now.UTC(),
		createdAt:     command.Now.UTC(),
	})
	return true, nil
}

func (s *Store) ClaimPending(
	_ context.Context,
	now time.Time,
	limit int,
	leaseOwner string,
	leaseUntil time.Time,
) ([]dto.PendingOutboxEvent, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := make([]dto.PendingOutboxEvent, 0, limit)
	for _, event := range s.events {
		if len(claimed) >= limit {
			break
		}
		if event.status != "pending" || event.nextAttemptAt.After(now) {
			continue
		}
		if event.leaseOwner != "" && event.leaseUntil.After(now) {
			continue
		}
		event.leaseOwner = strings.TrimSpace(leaseOwner)
		event.leaseUntil = leaseUntil.UTC()
		claimed = append(claimed, event.PendingOutboxEvent)
	}
	return claimed, nil
}

func (s *Store) MarkDelivered(_ context.Context, id int64, leaseOwner string, _ time.Time) (bool, *apperrors.AppError) {
	return s.markEvent(id, leaseOwner, func(event *eventEntry) {
		event.status = "delivered"
	})
}

func (s *Store) MarkRetry(
	_ context.Context,
	id int64,
	leaseOwner string,
	nextAttemptAt time.Time,
	_ string,
) (bool, *apperrors.AppError) {
	return s.markEvent(id, leaseOwner, func(event *eventEntry) {
		event.Attempts++
		event.nextAttemptAt = nextAttemptAt.UTC()
	})
}

func (s *Store) MarkFailed(_ context.Context, id int64, leaseOwner string, _ time.Time, _ string) (bool, *apperrors.AppError) {
	return s.markEvent(id, leaseOwner, func(event *eventEntry) {
		event.Attempts++
		event.status = "failed"
	})
}

func (s *Store) markEvent(id int64, leaseOwner string, apply func(*eventEntry)) (bool, *apperrors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.events {
		if event.ID != id || event.status != "pending" {
			continue
		}
		if event.leaseOwner != "" && event.leaseOwner != strings.TrimSpace(leaseOwner) {
			return false, nil
		}
		apply(event)
		event.leaseOwner = ""
		event.leaseUntil = time.Time{}
		return true, nil
	}
	return false, nil
}

func isTerminalState(state string) bool {
	parsed, appErr := valueobjects.ParseDepositState(state)
	return appErr == nil && parsed.IsTerminal()
}
