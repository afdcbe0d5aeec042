package spots

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LiveSessionCounter reports how many live (active/overtime) sessions
// currently reference a spot. Injected after wiring to avoid a dependency
// cycle between the inventory and session packages.
type LiveSessionCounter func(ctx context.Context, spotID uuid.UUID) (int, error)

// Store is the authoritative spot inventory. Availability lives in memory
// guarded by a per-spot mutex, so reserve/release are serialized per spot
// while reads take lock-free snapshots; every successful mutation writes
// through to the repository for durability.
type Store struct {
	mu    sync.RWMutex // guards the spot map itself
	spots map[uuid.UUID]*spotState

	repo      Repository
	liveCount LiveSessionCounter
}

type spotState struct {
	mu   sync.Mutex
	spot Spot
}

// NewStore creates an empty store; call Load before serving traffic.
func NewStore(repo Repository) *Store {
	return &Store{
		spots: make(map[uuid.UUID]*spotState),
		repo:  repo,
	}
}

// SetLiveSessionCounter injects the live-session counter dependency
func (st *Store) SetLiveSessionCounter(fn LiveSessionCounter) {
	st.liveCount = fn
}

// Load hydrates the store from persistence
func (st *Store) Load(ctx context.Context) error {
	records, err := st.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load spot inventory: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.spots = make(map[uuid.UUID]*spotState, len(records))
	for i := range records {
		st.spots[records[i].ID] = &spotState{spot: records[i]}
	}
	return nil
}

func (st *Store) state(id uuid.UUID) (*spotState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.spots[id]
	return s, ok
}

func (st *Store) liveSessions(ctx context.Context, id uuid.UUID) (int, error) {
	if st.liveCount == nil {
		return 0, nil
	}
	return st.liveCount(ctx, id)
}

// Get returns a snapshot of a single spot
func (st *Store) Get(id uuid.UUID) (Spot, error) {
	s, ok := st.state(id)
	if !ok {
		return Spot{}, ErrSpotNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spot.Clone(), nil
}

// Snapshot returns a point-in-time copy of all spots, ordered by creation
func (st *Store) Snapshot() []Spot {
	st.mu.RLock()
	states := make([]*spotState, 0, len(st.spots))
	for _, s := range st.spots {
		states = append(states, s)
	}
	st.mu.RUnlock()

	out := make([]Spot, 0, len(states))
	for _, s := range states {
		s.mu.Lock()
		out = append(out, s.spot.Clone())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ReserveOne atomically claims one unit of the spot's capacity. Two
// concurrent calls can never both succeed on the last unit.
func (st *Store) ReserveOne(ctx context.Context, id uuid.UUID) (int, error) {
	s, ok := st.state(id)
	if !ok {
		return 0, ErrSpotNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spot.Available <= 0 {
		return s.spot.Available, ErrInsufficientCapacity
	}

	newAvailable := s.spot.Available - 1
	if err := st.repo.UpdateAvailable(ctx, id, newAvailable); err != nil {
		return s.spot.Available, fmt.Errorf("failed to persist reserve: %w", err)
	}
	s.spot.Available = newAvailable
	return newAvailable, nil
}

// ReleaseOne returns one unit to the spot. Releasing above capacity is a
// corruption guard failure, never a silent clamp.
func (st *Store) ReleaseOne(ctx context.Context, id uuid.UUID) (int, error) {
	s, ok := st.state(id)
	if !ok {
		return 0, ErrSpotNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spot.Available >= s.spot.Capacity {
		return s.spot.Available, ErrReleaseAboveCapacity
	}

	newAvailable := s.spot.Available + 1
	if err := st.repo.UpdateAvailable(ctx, id, newAvailable); err != nil {
		return s.spot.Available, fmt.Errorf("failed to persist release: %w", err)
	}
	s.spot.Available = newAvailable
	return newAvailable, nil
}

// Add inserts a new spot. The id may be pre-assigned (journal redo of an
// AddSpot, or undo of a DeleteSpot restoring the original id).
func (st *Store) Add(ctx context.Context, spot Spot) (Spot, error) {
	if spot.ID == uuid.Nil {
		spot.ID = uuid.New()
	}
	if spot.Name == "" || spot.HourlyPrice < 0 || spot.Capacity < 0 {
		return Spot{}, ErrInvalidSpotAttributes
	}
	if !spot.VehicleType.IsValid() {
		spot.VehicleType = VehicleAny
	}
	if spot.Available < 0 || spot.Available > spot.Capacity {
		spot.Available = spot.Capacity
	}
	now := time.Now().UTC()
	if spot.CreatedAt.IsZero() {
		spot.CreatedAt = now
	}
	spot.UpdatedAt = now

	st.mu.Lock()
	if _, exists := st.spots[spot.ID]; exists {
		st.mu.Unlock()
		return Spot{}, ErrSpotAlreadyExists
	}
	// Insert the map entry while holding the map lock so a concurrent Add
	// of the same id cannot slip through between check and insert.
	state := &spotState{spot: spot}
	st.spots[spot.ID] = state
	st.mu.Unlock()

	if err := st.repo.Create(ctx, &spot); err != nil {
		st.mu.Lock()
		delete(st.spots, spot.ID)
		st.mu.Unlock()
		return Spot{}, fmt.Errorf("failed to persist spot: %w", err)
	}
	return spot, nil
}

// EditAttrs carries the mutable attributes of a spot; nil fields are untouched
type EditAttrs struct {
	Name            *string
	HourlyPrice     *float64
	Capacity        *int
	Lat             *float64
	Lng             *float64
	VehicleType     *VehicleType
	TrustLevel      *int
	BlockedDates    []string
	BlockedWeekdays []time.Weekday
}

// Edit applies attribute changes. Shrinking capacity below the live session
// count is rejected so the inventory invariant cannot be violated; on a
// capacity change the available count is re-derived as capacity minus live
// sessions.
func (st *Store) Edit(ctx context.Context, id uuid.UUID, attrs EditAttrs) (Spot, error) {
	s, ok := st.state(id)
	if !ok {
		return Spot{}, ErrSpotNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.spot.Clone()
	if attrs.Name != nil {
		updated.Name = *attrs.Name
	}
	if attrs.HourlyPrice != nil {
		if *attrs.HourlyPrice < 0 {
			return Spot{}, ErrInvalidSpotAttributes
		}
		updated.HourlyPrice = *attrs.HourlyPrice
	}
	if attrs.Lat != nil {
		updated.Lat = *attrs.Lat
	}
	if attrs.Lng != nil {
		updated.Lng = *attrs.Lng
	}
	if attrs.VehicleType != nil {
		if !attrs.VehicleType.IsValid() {
			return Spot{}, ErrInvalidSpotAttributes
		}
		updated.VehicleType = *attrs.VehicleType
	}
	if attrs.TrustLevel != nil {
		updated.TrustLevel = *attrs.TrustLevel
	}
	if attrs.BlockedDates != nil {
		updated.SetBlockedDates(attrs.BlockedDates)
	}
	if attrs.BlockedWeekdays != nil {
		updated.SetBlockedWeekdays(attrs.BlockedWeekdays)
	}
	if attrs.Capacity != nil {
		live, err := st.liveSessions(ctx, id)
		if err != nil {
			return Spot{}, fmt.Errorf("failed to count live sessions: %w", err)
		}
		if *attrs.Capacity < live {
			return Spot{}, ErrCapacityBelowLive
		}
		updated.Capacity = *attrs.Capacity
		updated.Available = *attrs.Capacity - live
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := st.repo.Update(ctx, &updated); err != nil {
		return Spot{}, fmt.Errorf("failed to persist spot edit: %w", err)
	}
	s.spot = updated
	return updated.Clone(), nil
}

// Delete removes a spot. Fails with ErrSpotHasActiveSession while live
// sessions reference it; callers must force-end those sessions first.
func (st *Store) Delete(ctx context.Context, id uuid.UUID) (Spot, error) {
	s, ok := st.state(id)
	if !ok {
		return Spot{}, ErrSpotNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := st.liveSessions(ctx, id)
	if err != nil {
		return Spot{}, fmt.Errorf("failed to count live sessions: %w", err)
	}
	if live > 0 {
		return Spot{}, ErrSpotHasActiveSession
	}

	removed := s.spot.Clone()
	if err := st.repo.Delete(ctx, id); err != nil {
		return Spot{}, fmt.Errorf("failed to persist spot delete: %w", err)
	}

	st.mu.Lock()
	delete(st.spots, id)
	st.mu.Unlock()
	return removed, nil
}

// Reconcile re-derives a spot's available count from the live session
// count and heals any drift. Returns the corrected count and whether a
// correction was applied.
func (st *Store) Reconcile(ctx context.Context, id uuid.UUID, live int) (int, bool, error) {
	s, ok := st.state(id)
	if !ok {
		return 0, false, ErrSpotNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expected := s.spot.Capacity - live
	if expected < 0 {
		expected = 0
	}
	if s.spot.Available == expected {
		return s.spot.Available, false, nil
	}

	if err := st.repo.UpdateAvailable(ctx, id, expected); err != nil {
		return s.spot.Available, false, fmt.Errorf("failed to persist reconcile: %w", err)
	}
	s.spot.Available = expected
	return expected, true, nil
}

// Exists reports whether a spot is present without copying it
func (st *Store) Exists(id uuid.UUID) bool {
	_, ok := st.state(id)
	return ok
}
