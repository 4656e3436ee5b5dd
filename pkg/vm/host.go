package vm

import (
	"github.com/peterstace/simplefeatures/geom"
	"github.com/zurustar/mission-vm/pkg/mission"
)

// Host is the world the engine drives. Entities live on the host side and
// are only referenced through opaque handles.
type Host interface {
	SpawnVehicle(pos mission.Coord, model int) Handle
	SpawnCharacter(pos mission.Coord, model int, player bool) Handle
	SpawnDoor(pos mission.Coord, kind int) Handle

	// AddTrigger hands a trigger to the world, which polls it once per tick.
	AddTrigger(t *Trigger)

	SetDoorOpen(door Handle, open bool)
	Explode(vehicle Handle)

	Score() int
	AddScore(delta int)
	TargetScore() int
	SetTargetScore(score int)

	ShowBriefing(id int)

	SetTrainWrecked(wrecked bool)
	TrainWrecked() bool

	PlayerPosition() geom.XY
	PlayerVehicle() (Handle, bool)
}
