package ports

import "luna-vmm/pkg/models"

// Collection bundles the ports used by the orchestrator.
type Collection struct {
	Drivers  map[models.Hypervisor]VMDriver
	Health   HealthChecker
	Image    ImageService
	Ports    PortAllocator
	Capacity CapacityService
	Events   EventService
	History  HistoryStore
}
