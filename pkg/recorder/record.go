package recorder

import (
	"encoding/json"
	"fmt"
)

// Schema selects the field spelling used when a record is written
type Schema string

const (
	// SchemaLegacy keeps the "faliure" key existing log consumers parse
	SchemaLegacy Schema = "legacy"
	// SchemaCorrected writes "failure" instead
	SchemaCorrected Schema = "corrected"
)

// ParseSchema maps a config string onto a Schema. Empty means legacy.
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case "", SchemaLegacy:
		return SchemaLegacy, nil
	case SchemaCorrected:
		return SchemaCorrected, nil
	default:
		return "", fmt.Errorf("unknown record schema %q", s)
	}
}

// Record is the flushed statistics of one epoch
type Record struct {
	EpochNo         int
	Success         int
	Failure         int
	TotalEpisodes   int
	CurrentTimestep float64
}

// SuccessRate is the epoch's success percentage, 0 when nothing ran
func (r Record) SuccessRate() float64 {
	n := r.Success + r.Failure
	if n == 0 {
		return 0
	}
	return float64(r.Success) / float64(n) * 100
}

type legacyLine struct {
	EpochNo         int     `json:"epoch_no"`
	Success         int     `json:"success"`
	Faliure         int     `json:"faliure"`
	TotalEpisodes   int     `json:"totalEpisodes"`
	CurrentTimestep float64 `json:"currentTimestep"`
}

type correctedLine struct {
	EpochNo         int     `json:"epoch_no"`
	Success         int     `json:"success"`
	Failure         int     `json:"failure"`
	TotalEpisodes   int     `json:"totalEpisodes"`
	CurrentTimestep float64 `json:"currentTimestep"`
}

// decodeLine accepts either spelling of the failure count
type decodeLine struct {
	EpochNo         int     `json:"epoch_no"`
	Success         int     `json:"success"`
	Faliure         *int    `json:"faliure"`
	Failure         *int    `json:"failure"`
	TotalEpisodes   int     `json:"totalEpisodes"`
	CurrentTimestep float64 `json:"currentTimestep"`
}

// Encode renders the record as one JSON object without a trailing newline
func (r Record) Encode(schema Schema) ([]byte, error) {
	if schema == SchemaCorrected {
		return json.Marshal(correctedLine{
			EpochNo:         r.EpochNo,
			Success:         r.Success,
			Failure:         r.Failure,
			TotalEpisodes:   r.TotalEpisodes,
			CurrentTimestep: r.CurrentTimestep,
		})
	}
	return json.Marshal(legacyLine{
		EpochNo:         r.EpochNo,
		Success:         r.Success,
		Faliure:         r.Failure,
		TotalEpisodes:   r.TotalEpisodes,
		CurrentTimestep: r.CurrentTimestep,
	})
}

// DecodeRecord parses one journal line written with either schema
func DecodeRecord(line []byte) (Record, error) {
	var d decodeLine
	if err := json.Unmarshal(line, &d); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	r := Record{
		EpochNo:         d.EpochNo,
		Success:         d.Success,
		TotalEpisodes:   d.TotalEpisodes,
		CurrentTimestep: d.CurrentTimestep,
	}
	switch {
	case d.Faliure != nil:
		r.Failure = *d.Faliure
	case d.Failure != nil:
		r.Failure = *d.Failure
	}
	return r, nil
}
