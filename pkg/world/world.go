// Package world provides a headless game world the mission VM can drive.
//
// It keeps just enough state for missions to run: entity positions, door and
// wreck flags, the player's position and vehicle, score and area triggers.
package world

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/vm"
)

// Entity is one spawned world object.
type Entity struct {
	Handle   vm.Handle
	Kind     vm.Kind
	Pos      geom.XY
	Z        int
	Model    int
	Player   bool
	Open     bool
	Exploded bool
}

// World implements vm.Host.
type World struct {
	entities map[vm.Handle]*Entity
	order    []vm.Handle
	next     vm.Handle

	triggers []*vm.Trigger

	score   int
	target  int
	wrecked bool

	briefings  []int
	onBriefing func(id int)

	player    vm.Handle
	hasPlayer bool
	playerPos geom.XY
	vehicle   vm.Handle
	inVehicle bool

	log *slog.Logger
}

var _ vm.Host = (*World)(nil)

// Option configures a World.
type Option func(*World)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *World) {
		w.log = log
	}
}

// WithBriefingHandler is called for every briefing the mission shows.
func WithBriefingHandler(fn func(id int)) Option {
	return func(w *World) {
		w.onBriefing = fn
	}
}

// New creates an empty world.
func New(opts ...Option) *World {
	w := &World{
		entities: make(map[vm.Handle]*Entity),
		next:     1,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// center returns the middle of a map block.
func center(pos mission.Coord) geom.XY {
	return geom.XY{X: float64(pos.X) + 0.5, Y: float64(pos.Y) + 0.5}
}

func (w *World) spawn(kind vm.Kind, pos mission.Coord, model int) *Entity {
	e := &Entity{Handle: w.next, Kind: kind, Pos: center(pos), Z: pos.Z, Model: model}
	w.next++
	w.entities[e.Handle] = e
	w.order = append(w.order, e.Handle)
	w.log.Debug("Entity spawned", "handle", int(e.Handle), "kind", kind.String(), "pos", pos.String(), "model", model)
	return e
}

// SpawnVehicle places a parked vehicle.
func (w *World) SpawnVehicle(pos mission.Coord, model int) vm.Handle {
	return w.spawn(vm.KindVehicle, pos, model).Handle
}

// SpawnCharacter places a pedestrian, or the player when player is set.
// A second player replaces the first as the controlled character.
func (w *World) SpawnCharacter(pos mission.Coord, model int, player bool) vm.Handle {
	e := w.spawn(vm.KindCharacter, pos, model)
	if player {
		e.Player = true
		w.player, w.hasPlayer = e.Handle, true
		w.playerPos = e.Pos
		w.inVehicle = false
	}
	return e.Handle
}

// SpawnDoor places a closed door.
func (w *World) SpawnDoor(pos mission.Coord, kind int) vm.Handle {
	return w.spawn(vm.KindDoor, pos, kind).Handle
}

// AddTrigger registers a trigger for PollTriggers.
func (w *World) AddTrigger(t *vm.Trigger) {
	w.triggers = append(w.triggers, t)
}

// SetDoorOpen opens or closes a door.
func (w *World) SetDoorOpen(door vm.Handle, open bool) {
	e, ok := w.entities[door]
	if !ok || e.Kind != vm.KindDoor {
		w.log.Warn("Door not found", "handle", int(door))
		return
	}
	e.Open = open
}

// Explode wrecks a vehicle, throwing the player out if inside.
func (w *World) Explode(vehicle vm.Handle) {
	e, ok := w.entities[vehicle]
	if !ok || e.Kind != vm.KindVehicle {
		w.log.Warn("Vehicle not found", "handle", int(vehicle))
		return
	}
	e.Exploded = true
	if w.inVehicle && w.vehicle == vehicle {
		w.inVehicle = false
	}
	w.log.Info("Vehicle exploded", "handle", int(vehicle))
}

// Score returns the player's score.
func (w *World) Score() int { return w.score }

// AddScore adjusts the player's score.
func (w *World) AddScore(delta int) { w.score += delta }

// TargetScore returns the score needed to pass the mission.
func (w *World) TargetScore() int { return w.target }

// SetTargetScore replaces the target score.
func (w *World) SetTargetScore(score int) { w.target = score }

// ShowBriefing records a briefing message id.
func (w *World) ShowBriefing(id int) {
	w.briefings = append(w.briefings, id)
	w.log.Info("Briefing", "message", id)
	if w.onBriefing != nil {
		w.onBriefing(id)
	}
}

// Briefings returns every briefing id shown so far.
func (w *World) Briefings() []int { return w.briefings }

// SetTrainWrecked sets the train-wreck flag.
func (w *World) SetTrainWrecked(wrecked bool) { w.wrecked = wrecked }

// TrainWrecked returns the train-wreck flag.
func (w *World) TrainWrecked() bool { return w.wrecked }

// PlayerPosition returns where the player is.
func (w *World) PlayerPosition() geom.XY { return w.playerPos }

// PlayerVehicle returns the vehicle the player sits in.
func (w *World) PlayerVehicle() (vm.Handle, bool) {
	return w.vehicle, w.inVehicle
}

// MovePlayer moves the player (and the vehicle driven) by dx, dy blocks.
func (w *World) MovePlayer(dx, dy float64) {
	w.SetPlayerPosition(geom.XY{X: w.playerPos.X + dx, Y: w.playerPos.Y + dy})
}

// SetPlayerPosition teleports the player.
func (w *World) SetPlayerPosition(xy geom.XY) {
	w.playerPos = xy
	if w.hasPlayer {
		w.entities[w.player].Pos = xy
	}
	if w.inVehicle {
		w.entities[w.vehicle].Pos = xy
	}
}

// EnterVehicle puts the player into a vehicle.
func (w *World) EnterVehicle(vehicle vm.Handle) error {
	e, ok := w.entities[vehicle]
	if !ok || e.Kind != vm.KindVehicle {
		return fmt.Errorf("no vehicle with handle %d", vehicle)
	}
	if e.Exploded {
		return fmt.Errorf("vehicle %d is wrecked", vehicle)
	}
	w.vehicle, w.inVehicle = vehicle, true
	w.SetPlayerPosition(e.Pos)
	w.log.Debug("Player entered vehicle", "handle", int(vehicle))
	return nil
}

// ExitVehicle gets the player out of the current vehicle.
func (w *World) ExitVehicle() {
	w.inVehicle = false
}

// NearestVehicle returns the closest intact vehicle within radius blocks.
func (w *World) NearestVehicle(radius float64) (vm.Handle, bool) {
	var (
		best  vm.Handle
		found bool
		dist  = math.Inf(1)
	)
	for _, h := range w.order {
		e := w.entities[h]
		if e.Kind != vm.KindVehicle || e.Exploded {
			continue
		}
		d := math.Hypot(e.Pos.X-w.playerPos.X, e.Pos.Y-w.playerPos.Y)
		if d <= radius && d < dist {
			best, found, dist = h, true, d
		}
	}
	return best, found
}

// PollTriggers tests every trigger against the player's position and
// returns how many fired.
func (w *World) PollTriggers() int {
	fired := 0
	for _, t := range w.triggers {
		if t.Poll(w.playerPos) {
			fired++
		}
	}
	return fired
}

// HasArmedTriggers reports whether any trigger can still fire.
func (w *World) HasArmedTriggers() bool {
	for _, t := range w.triggers {
		if !t.Disabled() {
			return true
		}
	}
	return false
}

// Triggers returns the registered triggers.
func (w *World) Triggers() []*vm.Trigger { return w.triggers }

// Entities returns copies of every entity in spawn order.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, len(w.order))
	for _, h := range w.order {
		out = append(out, *w.entities[h])
	}
	return out
}

// Entity returns a copy of one entity.
func (w *World) Entity(h vm.Handle) (Entity, bool) {
	e, ok := w.entities[h]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}
