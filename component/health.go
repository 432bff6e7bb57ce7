package component

// ServiceHealth describes the overall health of a service and its components.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a healthy ServiceHealth and adds every component result.
func NewServiceHealth(service, version string, components ...Health) *ServiceHealth {
	sh := &ServiceHealth{Service: service, Status: StatusHealthy, Version: version}
	for _, c := range components {
		sh.AddComponent(c)
	}
	return sh
}

// AddComponent adds a component health result and degrades overall status if needed.
// Unhealthy always wins over degraded.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case StatusUnhealthy:
		sh.Status = StatusUnhealthy
	case StatusDegraded:
		if sh.Status != StatusUnhealthy {
			sh.Status = StatusDegraded
		}
	}
}

// Ready reports whether no component is unhealthy.
func (sh *ServiceHealth) Ready() bool { return sh.Status != StatusUnhealthy }
