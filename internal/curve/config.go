package curve

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is bumped whenever the persisted curve config shape changes.
const SchemaVersion = 1

// Config is the versioned persisted form of a curve. Each token row carries
// one as a jsonb blob; the schema version gates forward-compatible decoding.
type Config struct {
	SchemaVersion       int     `json:"schema_version"`
	InitialPrice        float64 `json:"initial_price"`
	InitialSupply       float64 `json:"initial_supply"`
	CurveSteepness      float64 `json:"curve_steepness"`
	VirtualTokenReserve float64 `json:"virtual_token_reserve"`
	VirtualAlgoReserve  float64 `json:"virtual_algo_reserve"`
	K                   float64 `json:"k"`
}

// Marshal serializes the engine's fixed parameters for storage.
func (e *Engine) Marshal() ([]byte, error) {
	return json.Marshal(Config{
		SchemaVersion:       SchemaVersion,
		InitialPrice:        e.InitialPrice,
		InitialSupply:       e.InitialSupply,
		CurveSteepness:      e.CurveSteepness,
		VirtualTokenReserve: e.VirtualTokenReserve,
		VirtualAlgoReserve:  e.VirtualAlgoReserve,
		K:                   e.K,
	})
}

// Restore rebuilds an engine from a persisted config blob. Unknown schema
// versions are rejected up front so a mixed deployment fails loudly instead
// of mispricing.
func Restore(raw []byte) (*Engine, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode curve config: %w", err)
	}
	if cfg.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported curve config schema %d", cfg.SchemaVersion)
	}
	if cfg.VirtualTokenReserve <= 0 || cfg.VirtualAlgoReserve <= 0 {
		return nil, fmt.Errorf("curve config has non-positive virtual reserves")
	}
	e := &Engine{
		InitialPrice:        cfg.InitialPrice,
		InitialSupply:       cfg.InitialSupply,
		CurveSteepness:      cfg.CurveSteepness,
		VirtualTokenReserve: cfg.VirtualTokenReserve,
		VirtualAlgoReserve:  cfg.VirtualAlgoReserve,
		K:                   cfg.K,
	}
	if e.K == 0 {
		e.K = e.VirtualTokenReserve * e.VirtualAlgoReserve
	}
	return e, nil
}
