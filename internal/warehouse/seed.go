package warehouse

import (
	"fmt"
	"time"
)

// SampleData returns the demo packages used for local runs and ESB
// integration checks. PKG003 has already been loaded, so it holds no slot.
func SampleData(now time.Time) []Package {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	processed := at(10, 45)
	loaded := at(9, 50)

	return []Package{
		{
			PackageID:       "PKG001",
			OrderID:         "ORD20250101001",
			ExternalOrderID: "TEST-001",
			ClientID:        "CLIENT001",
			Status:          StatusReadyForLoading,
			Zone:            "A",
			Weight:          2.5,
			Dimensions:      "30x20x15",
			ReceivedAt:      at(10, 30),
			ProcessedAt:     &processed,
			LastUpdated:     processed,
		},
		{
			PackageID:       "PKG002",
			OrderID:         "ORD20250101002",
			ExternalOrderID: "TEST-002",
			ClientID:        "CLIENT002",
			Status:          StatusProcessing,
			Zone:            "B",
			Weight:          1.8,
			Dimensions:      "25x15x10",
			SpecialHandling: true,
			ReceivedAt:      at(11, 45),
			LastUpdated:     at(11, 45),
		},
		{
			PackageID:       "PKG003",
			OrderID:         "ORD20250101003",
			ExternalOrderID: "TEST-003",
			ClientID:        "CLIENT001",
			Status:          StatusLoaded,
			Weight:          3.2,
			Dimensions:      "40x30x20",
			ReceivedAt:      at(9, 15),
			LoadedAt:        &loaded,
			LastUpdated:     loaded,
			LoadedVehicle:   "VEH001",
		},
	}
}

// Seed inserts fully formed records, placing each one in the zone it names.
// It is meant for startup only and rejects ids that already exist.
func (s *Store) Seed(pkgs []Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range pkgs {
		p := pkgs[i].clone()
		if p.PackageID == "" || !p.Status.Valid() {
			return fmt.Errorf("%w: seed record %d", ErrInvalidPackage, i)
		}
		if _, exists := s.packages[p.PackageID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, p.PackageID)
		}
		if p.Zone != "" {
			z, ok := s.zoneByID[p.Zone]
			if !ok {
				return fmt.Errorf("%w: package %s names unknown zone %s", ErrInvalidZones, p.PackageID, p.Zone)
			}
			if z.current >= z.capacity {
				return fmt.Errorf("%w: zone %s", ErrNoCapacity, z.id)
			}
			z.add(p.PackageID)
		}
		s.packages[p.PackageID] = &p
		s.order = append(s.order, p.PackageID)
	}
	return nil
}
