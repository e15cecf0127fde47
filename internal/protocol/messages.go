package protocol

import (
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/physics"
)

// WELCOME (server -> client), sent once after the upgrade.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	TuningDigest    string `json:"tuning_digest,omitempty"`
	Moons           bool   `json:"moons"`
}

// GENERATE (client -> server)
type GenerateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`

	// Seed is drawn by the server when absent.
	Seed *int64 `json:"seed,omitempty"`
	// StellarMass defaults to 1 solar mass.
	StellarMass float64 `json:"stellar_mass,omitempty"`
	// StellarLuminosity 0 is derived from the mass.
	StellarLuminosity float64 `json:"stellar_luminosity,omitempty"`
	// Moons overrides the server's capture setting.
	Moons *bool `json:"moons,omitempty"`
}

// Config returns the run configuration the request asks for.
func (m GenerateMsg) Config() accrete.Config {
	cfg := accrete.Config{StellarMass: m.StellarMass, StellarLuminosity: m.StellarLuminosity}
	if cfg.StellarMass == 0 {
		cfg.StellarMass = 1
	}
	return cfg
}

// SYSTEM (server -> client): the complete result of one GENERATE.
type SystemMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	RunID           string `json:"run_id,omitempty"`

	Seed    int64     `json:"seed"`
	Digest  string    `json:"digest"`
	Star    StarInfo  `json:"star"`
	Planets []BodyMsg `json:"planets"`
	Stats   StatsMsg  `json:"stats"`
}

type StarInfo struct {
	StellarMass       float64 `json:"stellar_mass"`
	StellarLuminosity float64 `json:"stellar_luminosity"`
	InnerDust         float64 `json:"inner_dust"`
	OuterDust         float64 `json:"outer_dust"`
}

type BodyMsg struct {
	A           float64   `json:"a"`
	E           float64   `json:"e"`
	Mass        float64   `json:"mass"`
	EarthMasses float64   `json:"earth_masses"`
	DustMass    float64   `json:"dust_mass"`
	GasMass     float64   `json:"gas_mass"`
	GasGiant    bool      `json:"gas_giant"`
	Moons       []BodyMsg `json:"moons,omitempty"`
}

type StatsMsg struct {
	Samples  int `json:"samples"`
	Inserts  int `json:"inserts"`
	Merges   int `json:"merges"`
	Captures int `json:"captures"`
	Bands    int `json:"bands"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewSystemMsg(reqID, runID string, seed int64, digest string, sys *accrete.System) SystemMsg {
	msg := SystemMsg{
		Type:            TypeSystem,
		ProtocolVersion: Version,
		ReqID:           reqID,
		RunID:           runID,
		Seed:            seed,
		Digest:          digest,
		Planets:         []BodyMsg{},
	}
	if sys == nil {
		return msg
	}
	msg.Star = StarInfo{
		StellarMass:       sys.Config.StellarMass,
		StellarLuminosity: sys.Config.StellarLuminosity,
		InnerDust:         sys.Config.InnerDust,
		OuterDust:         sys.Config.OuterDust,
	}
	if bodies := bodyMsgs(sys.Seeds); bodies != nil {
		msg.Planets = bodies
	}
	msg.Stats = StatsMsg{
		Samples:  sys.Stats.Samples,
		Inserts:  sys.Stats.Inserts,
		Merges:   sys.Stats.Merges,
		Captures: sys.Stats.Captures,
		Bands:    sys.Stats.Bands,
	}
	return msg
}

func bodyMsgs(seeds []accrete.Seed) []BodyMsg {
	if len(seeds) == 0 {
		return nil
	}
	out := make([]BodyMsg, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, BodyMsg{
			A:           s.A,
			E:           s.E,
			Mass:        s.Mass,
			EarthMasses: physics.EarthMasses(s.Mass),
			DustMass:    s.DustMass,
			GasMass:     s.GasMass,
			GasGiant:    s.GasGiant,
			Moons:       bodyMsgs(s.Moons),
		})
	}
	return out
}

func NewErrorMsg(reqID, code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ReqID: reqID, Code: code, Message: message}
}
