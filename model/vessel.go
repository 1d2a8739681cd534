package model

// VesselDefinition identifies the craft whose flight plan is being edited.
// Its trajectory comes from a TLE propagated with SGP4.
type VesselDefinition struct {
	ID   string
	Name string

	TLELine1 string
	TLELine2 string

	NoradID uint32 // optional
}

// Body is a gravitating body the vessel may encounter. Radii are in
// kilometres from the primary's centre.
type Body struct {
	Name        string
	OrbitRadius float64
	SOIRadius   float64
}
