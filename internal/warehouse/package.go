package warehouse

import "time"

// Package is one tracked parcel. Timestamps other than LastUpdated are
// stamped once, when the matching transition happens.
type Package struct {
	PackageID       string     `json:"package_id"`
	OrderID         string     `json:"order_id"`
	ExternalOrderID string     `json:"external_order_id,omitempty"`
	ClientID        string     `json:"client_id"`
	Status          Status     `json:"status"`
	Zone            string     `json:"zone,omitempty"` // empty once the package has left the floor
	Weight          float64    `json:"weight"`
	Dimensions      string     `json:"dimensions"`
	SpecialHandling bool       `json:"special_handling"`
	ReceivedAt      time.Time  `json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	LoadedAt        *time.Time `json:"loaded_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	LastUpdated     time.Time  `json:"last_updated"`
	LoadedVehicle   string     `json:"loaded_vehicle,omitempty"`
}

// clone returns a deep copy so callers never share the store's pointers.
func (p *Package) clone() Package {
	cp := *p
	cp.ProcessedAt = copyTime(p.ProcessedAt)
	cp.LoadedAt = copyTime(p.LoadedAt)
	cp.CancelledAt = copyTime(p.CancelledAt)
	return cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NewPackage carries the client-supplied fields of a received package.
type NewPackage struct {
	PackageID       string
	OrderID         string
	ExternalOrderID string
	ClientID        string
	Weight          float64
	Dimensions      string
	SpecialHandling bool
}

// ZoneSpec configures one storage zone at startup.
type ZoneSpec struct {
	ID       string `toml:"id"`
	Capacity int    `toml:"capacity"`
}

// DefaultZones is the standard three-zone floor: A, B and C.
func DefaultZones() []ZoneSpec {
	return []ZoneSpec{
		{ID: "A", Capacity: 100},
		{ID: "B", Capacity: 150},
		{ID: "C", Capacity: 200},
	}
}

// zone is the store-internal occupancy record. current is kept equal to
// len(packages) by every mutation.
type zone struct {
	id       string
	capacity int
	current  int
	packages []string
}

func (z *zone) add(packageID string) {
	z.packages = append(z.packages, packageID)
	z.current++
}

// remove drops packageID if present and reports whether it was resident.
func (z *zone) remove(packageID string) bool {
	for i, id := range z.packages {
		if id == packageID {
			z.packages = append(z.packages[:i], z.packages[i+1:]...)
			if z.current > 0 {
				z.current--
			}
			return true
		}
	}
	return false
}

// ZoneSnapshot is a point-in-time view of one zone.
type ZoneSnapshot struct {
	Capacity int      `json:"capacity"`
	Current  int      `json:"current"`
	Packages []string `json:"packages"`
}

// WarehouseSnapshot is a consistent view of the whole floor.
type WarehouseSnapshot struct {
	Timestamp        time.Time               `json:"timestamp"`
	TotalPackages    int                     `json:"total_packages"`
	Zones            map[string]ZoneSnapshot `json:"zones"`
	PackagesByStatus map[Status]int          `json:"packages_by_status"`
}

// EventKind names the lifecycle event that produced a mutation.
type EventKind string

const (
	EventReceived  EventKind = "received"
	EventProcessed EventKind = "processed"
	EventLoaded    EventKind = "loaded"
	EventCancelled EventKind = "cancelled"
)

// Event records one successful lifecycle mutation.
type Event struct {
	Kind           EventKind `json:"kind"`
	Package        Package   `json:"package"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	At             time.Time `json:"at"`
}
