package accrete

// EventKind names an engine decision.
type EventKind string

const (
	// EventMiss: no dust within the planetesimal's initial reach.
	EventMiss EventKind = "INJECT_MISS"
	// EventStarved: dust was reachable but the planetesimal swept nothing.
	EventStarved EventKind = "STARVED"
	EventInsert  EventKind = "INSERT"
	EventMerge   EventKind = "MERGE"
	EventCapture EventKind = "CAPTURE"
	// EventEscape: a collision was eligible for capture checks but failed them.
	EventEscape EventKind = "ESCAPE"
	// EventSettle: a merged body grew into a neighbour and absorbed it.
	EventSettle EventKind = "SETTLE"
)

// Event records one step of a run. Orbit fields describe the incoming body;
// Target* fields describe the existing body it collided with.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind EventKind `json:"kind"`

	A        float64 `json:"a"`
	E        float64 `json:"e"`
	Mass     float64 `json:"mass,omitempty"`
	DustMass float64 `json:"dust_mass,omitempty"`
	GasMass  float64 `json:"gas_mass,omitempty"`

	TargetA    float64 `json:"target_a,omitempty"`
	TargetMass float64 `json:"target_mass,omitempty"`
	NewA       float64 `json:"new_a,omitempty"`
	NewE       float64 `json:"new_e,omitempty"`
	NewMass    float64 `json:"new_mass,omitempty"`

	// Capture bookkeeping, evaluated before the moon is attached.
	EarthMasses      float64 `json:"earth_masses,omitempty"`
	ExistingMoonMass float64 `json:"existing_moon_mass,omitempty"`
	Swapped          bool    `json:"swapped,omitempty"`

	GasGiant bool `json:"gas_giant,omitempty"`
	Planets  int  `json:"planets"`
	Bands    int  `json:"bands"`
}

// Observer receives every event of a run, in order, on the run's goroutine.
type Observer func(Event)

// Stats summarises a finished run.
type Stats struct {
	Samples           int `json:"samples"`
	Misses            int `json:"misses"`
	Starved           int `json:"starved"`
	Inserts           int `json:"inserts"`
	Merges            int `json:"merges"`
	Captures          int `json:"captures"`
	Escapes           int `json:"escapes"`
	Settles           int `json:"settles"`
	AccreteIterations int `json:"accrete_iterations"`
	Bands             int `json:"bands"`

	// SeedMass is the protoplanet mass of every injected body; SweptMass is
	// everything collected from the disk by those bodies and their merges.
	SeedMass  float64 `json:"seed_mass"`
	SweptMass float64 `json:"swept_mass"`
}
