package warehouse

import (
	"fmt"
	"sync"
	"time"
)

// Store owns every package record and zone counter. All methods are safe
// for concurrent use; each one runs under the store-wide lock so readers
// always observe a consistent floor.
type Store struct {
	mu       sync.RWMutex
	packages map[string]*Package
	order    []string // receive order, used for alias lookups
	zones    []*zone  // configured order, used for tie-breaks
	zoneByID map[string]*zone
	now      func() time.Time
	observer Observer
}

// Observer receives every successful mutation, in store order. It is called
// with the store lock held, so it must not block or call back into the Store.
type Observer interface {
	Record(ev Event)
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for stamping records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithObserver installs the mutation observer at construction.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// SetObserver replaces the mutation observer. A nil observer disables it.
func (s *Store) SetObserver(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// emit hands ev to the observer. Callers must hold s.mu.
func (s *Store) emit(ev Event) Event {
	if s.observer != nil {
		s.observer.Record(ev)
	}
	return ev
}

// NewStore builds a store over a fixed zone layout.
func NewStore(specs []ZoneSpec, opts ...Option) (*Store, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one zone is required", ErrInvalidZones)
	}
	s := &Store{
		packages: make(map[string]*Package),
		zoneByID: make(map[string]*zone, len(specs)),
		now:      time.Now,
	}
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("%w: zone id is empty", ErrInvalidZones)
		}
		if spec.Capacity <= 0 {
			return nil, fmt.Errorf("%w: zone %s capacity must be positive", ErrInvalidZones, spec.ID)
		}
		if _, dup := s.zoneByID[spec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate zone %s", ErrInvalidZones, spec.ID)
		}
		z := &zone{id: spec.ID, capacity: spec.Capacity, packages: []string{}}
		s.zones = append(s.zones, z)
		s.zoneByID[spec.ID] = z
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Receive registers a new package and assigns it to the least occupied zone.
func (s *Store) Receive(np NewPackage) (Event, error) {
	if np.PackageID == "" {
		return Event{}, fmt.Errorf("%w: package id is required", ErrInvalidPackage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[np.PackageID]; exists {
		return Event{}, fmt.Errorf("%w: %s", ErrDuplicate, np.PackageID)
	}
	z := s.pickZone()
	if z == nil {
		return Event{}, ErrNoCapacity
	}

	now := s.now()
	pkg := &Package{
		PackageID:       np.PackageID,
		OrderID:         np.OrderID,
		ExternalOrderID: np.ExternalOrderID,
		ClientID:        np.ClientID,
		Status:          StatusReceived,
		Zone:            z.id,
		Weight:          np.Weight,
		Dimensions:      np.Dimensions,
		SpecialHandling: np.SpecialHandling,
		ReceivedAt:      now,
		LastUpdated:     now,
	}
	s.packages[pkg.PackageID] = pkg
	s.order = append(s.order, pkg.PackageID)
	z.add(pkg.PackageID)

	return s.emit(Event{Kind: EventReceived, Package: pkg.clone(), At: now}), nil
}

// pickZone returns the zone holding the fewest packages, the earliest
// configured one on a tie. Full zones are skipped.
func (s *Store) pickZone() *zone {
	var best *zone
	for _, z := range s.zones {
		if z.current >= z.capacity {
			continue
		}
		if best == nil || z.current < best.current {
			best = z
		}
	}
	return best
}

// MarkProcessed moves a package to READY_FOR_LOADING.
func (s *Store) MarkProcessed(packageID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, err := s.transition(packageID, StatusReadyForLoading)
	if err != nil {
		return Event{}, err
	}
	prev := pkg.Status
	now := s.now()
	pkg.Status = StatusReadyForLoading
	pkg.ProcessedAt = &now
	pkg.LastUpdated = now

	return s.emit(Event{Kind: EventProcessed, Package: pkg.clone(), PreviousStatus: prev, At: now}), nil
}

// MarkLoaded records the vehicle a package was loaded onto and frees its
// zone slot.
func (s *Store) MarkLoaded(packageID, vehicleID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, err := s.transition(packageID, StatusLoaded)
	if err != nil {
		return Event{}, err
	}
	prev := pkg.Status
	now := s.now()
	pkg.Status = StatusLoaded
	pkg.LoadedAt = &now
	pkg.LastUpdated = now
	pkg.LoadedVehicle = vehicleID
	s.vacate(pkg)

	return s.emit(Event{Kind: EventLoaded, Package: pkg.clone(), PreviousStatus: prev, At: now}), nil
}

// Cancel finds a package by package id, then order id, then external
// order id, and marks it CANCELLED. Cancelled packages stay in the store
// so later alias lookups keep resolving.
func (s *Store) Cancel(searchID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg := s.lookup(searchID)
	if pkg == nil {
		return Event{}, fmt.Errorf("%w for id %s", ErrNotFound, searchID)
	}
	if !pkg.Status.CanTransition(StatusCancelled) {
		return Event{}, fmt.Errorf("%w: %s -> %s (package %s)", ErrInvalidTransition, pkg.Status, StatusCancelled, pkg.PackageID)
	}
	prev := pkg.Status
	now := s.now()
	pkg.Status = StatusCancelled
	pkg.CancelledAt = &now
	pkg.LastUpdated = now
	s.vacate(pkg)

	return s.emit(Event{Kind: EventCancelled, Package: pkg.clone(), PreviousStatus: prev, At: now}), nil
}

func (s *Store) lookup(searchID string) *Package {
	if searchID == "" {
		return nil
	}
	if pkg, ok := s.packages[searchID]; ok {
		return pkg
	}
	for _, id := range s.order {
		if pkg := s.packages[id]; pkg.OrderID == searchID {
			return pkg
		}
	}
	for _, id := range s.order {
		if pkg := s.packages[id]; pkg.ExternalOrderID == searchID {
			return pkg
		}
	}
	return nil
}

// Status returns a snapshot of one package record.
func (s *Store) Status(packageID string) (Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pkg, ok := s.packages[packageID]
	if !ok {
		return Package{}, fmt.Errorf("%w: %s", ErrNotFound, packageID)
	}
	return pkg.clone(), nil
}

// Snapshot returns totals, zone occupancy and per-status counts taken at a
// single point in time.
func (s *Store) Snapshot() WarehouseSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := WarehouseSnapshot{
		Timestamp:        s.now(),
		TotalPackages:    len(s.packages),
		Zones:            make(map[string]ZoneSnapshot, len(s.zones)),
		PackagesByStatus: make(map[Status]int, len(Statuses)),
	}
	for _, z := range s.zones {
		members := make([]string, len(z.packages))
		copy(members, z.packages)
		snap.Zones[z.id] = ZoneSnapshot{Capacity: z.capacity, Current: z.current, Packages: members}
	}
	for _, st := range Statuses {
		snap.PackagesByStatus[st] = 0
	}
	for _, pkg := range s.packages {
		snap.PackagesByStatus[pkg.Status]++
	}
	return snap
}

// ZoneIDs returns the configured zone order.
func (s *Store) ZoneIDs() []string {
	ids := make([]string, len(s.zones))
	for i, z := range s.zones {
		ids[i] = z.id
	}
	return ids
}

// transition loads a package and checks that it may move to next.
// Callers must hold s.mu.
func (s *Store) transition(packageID string, next Status) (*Package, error) {
	pkg, ok := s.packages[packageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, packageID)
	}
	if !pkg.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s (package %s)", ErrInvalidTransition, pkg.Status, next, packageID)
	}
	return pkg, nil
}

// vacate removes pkg from its zone, if it is still resident.
func (s *Store) vacate(pkg *Package) {
	if z, ok := s.zoneByID[pkg.Zone]; ok {
		z.remove(pkg.PackageID)
	}
	pkg.Zone = ""
}
