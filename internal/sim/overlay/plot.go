package overlay

import (
	"errors"
	"time"
)

type PlotState string

const (
	PlotEmpty   PlotState = "empty"
	PlotTilled  PlotState = "tilled"
	PlotWatered PlotState = "watered"
	PlotPlanted PlotState = "planted"
	PlotReady   PlotState = "ready"
)

var (
	ErrAlreadyMined   = errors.New("block already mined")
	ErrAlreadyTilled  = errors.New("plot already tilled")
	ErrNotTilled      = errors.New("plot not tilled")
	ErrOccupied       = errors.New("plot already planted")
	ErrNotReady       = errors.New("crop not ready")
	ErrAlreadyWatered = errors.New("plot already watered")
	ErrGroundMined    = errors.New("ground under plot was mined")
)

// Plot is the farming state of one surface cell. A planted crop grows only
// once watered; GrowStart is the moment both held.
type Plot struct {
	State     PlotState     `json:"state"`
	Crop      string        `json:"crop,omitempty"`
	Watered   bool          `json:"watered,omitempty"`
	PlantedAt time.Time     `json:"planted_at"`
	GrowStart time.Time     `json:"grow_start"`
	GrowFor   time.Duration `json:"grow_for,omitempty"`
}

func (p Plot) isEmpty() bool { return p.State == "" || p.State == PlotEmpty }

// ReadyAt is zero until the crop has started growing.
func (p Plot) ReadyAt() time.Time {
	if p.State != PlotPlanted && p.State != PlotReady {
		return time.Time{}
	}
	if p.GrowStart.IsZero() {
		return time.Time{}
	}
	return p.GrowStart.Add(p.GrowFor)
}

func (p *Plot) till() error {
	if !p.isEmpty() {
		return ErrAlreadyTilled
	}
	*p = Plot{State: PlotTilled}
	return nil
}

func (p *Plot) water(now time.Time) error {
	switch p.State {
	case PlotTilled:
		p.State = PlotWatered
		p.Watered = true
		return nil
	case PlotPlanted:
		if p.Watered {
			return ErrAlreadyWatered
		}
		p.Watered = true
		p.GrowStart = now
		return nil
	case PlotWatered, PlotReady:
		return ErrAlreadyWatered
	default:
		return ErrNotTilled
	}
}

func (p *Plot) plant(crop string, growFor time.Duration, now time.Time) error {
	switch p.State {
	case PlotTilled, PlotWatered:
	case PlotPlanted, PlotReady:
		return ErrOccupied
	default:
		return ErrNotTilled
	}
	watered := p.State == PlotWatered
	*p = Plot{
		State:     PlotPlanted,
		Crop:      crop,
		Watered:   watered,
		PlantedAt: now,
		GrowFor:   growFor,
	}
	if watered {
		p.GrowStart = now
	}
	return nil
}

// advance promotes a grown crop to ready and reports whether it changed.
func (p *Plot) advance(now time.Time) bool {
	if p.State != PlotPlanted {
		return false
	}
	at := p.ReadyAt()
	if at.IsZero() || now.Before(at) {
		return false
	}
	p.State = PlotReady
	return true
}

func (p *Plot) harvest(now time.Time) (string, error) {
	p.advance(now)
	if p.State != PlotReady {
		return "", ErrNotReady
	}
	crop := p.Crop
	*p = Plot{State: PlotTilled}
	return crop, nil
}
