package deck

import (
	scaler "github.com/tphakala/go-audio-scaler"
)

// LoopSnapshot is a loop region in track frames.
type LoopSnapshot struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Snapshot is a point-in-time view of a deck for control surfaces.
type Snapshot struct {
	ID         string        `json:"id" yaml:"id"`
	Track      string        `json:"track" yaml:"track"`
	SampleRate int           `json:"sample_rate" yaml:"sample_rate"`
	OutputRate int           `json:"output_rate" yaml:"output_rate"`
	Channels   int           `json:"channels" yaml:"channels"`
	Frames     int           `json:"frames" yaml:"frames"`
	Position   float64       `json:"position" yaml:"position"`
	Seconds    float64       `json:"seconds" yaml:"seconds"`
	Tempo      float64       `json:"tempo" yaml:"tempo"`
	Pitch      float64       `json:"pitch" yaml:"pitch"`
	Semitones  float64       `json:"semitones" yaml:"semitones"`
	Loop       *LoopSnapshot `json:"loop,omitempty" yaml:"loop,omitempty"`
	Blocks     uint64        `json:"blocks" yaml:"blocks"`
	Stats      scaler.Stats  `json:"stats" yaml:"stats"`
}

// Snapshot returns the current deck state. Safe from any goroutine.
func (d *Deck) Snapshot() Snapshot {
	d.mu.Lock()
	req := d.requested
	var loop *LoopSnapshot
	if d.loop != nil {
		l := *d.loop
		loop = &l
	}
	d.mu.Unlock()

	position := d.Position()
	return Snapshot{
		ID:         d.id.String(),
		Track:      d.track.Name(),
		SampleRate: d.track.SampleRate(),
		OutputRate: d.format.SampleRate,
		Channels:   d.format.Channels,
		Frames:     d.track.Frames(),
		Position:   position,
		Seconds:    position / float64(d.track.SampleRate()),
		Tempo:      req.TempoRatio,
		Pitch:      req.PitchRatio,
		Semitones:  scaler.SemitonesFromPitchRatio(req.PitchRatio),
		Loop:       loop,
		Blocks:     d.blocks.Load(),
		Stats:      d.scaler.Stats(),
	}
}
