package vm

import (
	"maps"
	"slices"
)

// References maps labels to created objects and to command positions.
// It is filled during initialization and frozen afterwards.
type References struct {
	objects   map[int]Object
	positions map[int]int
	frozen    bool
}

// NewReferences creates an empty, unfrozen table.
func NewReferences() *References {
	return &References{
		objects:   make(map[int]Object),
		positions: make(map[int]int),
	}
}

// BindObject records label -> obj. Label 0 is never bound.
func (r *References) BindObject(label int, obj Object) error {
	if r.frozen {
		return NewFrozenTableError(label)
	}
	if label == 0 || obj.IsZero() {
		return nil
	}
	if _, ok := r.objects[label]; ok {
		err := NewRuntimeError(ErrorDuplicateLabel, "object label bound twice, keeping the latest")
		err.Label = label
		r.objects[label] = obj
		return err
	}
	r.objects[label] = obj
	return nil
}

// BindPosition records label -> command index. The first binding wins.
func (r *References) BindPosition(label, index int) error {
	if r.frozen {
		return NewFrozenTableError(label)
	}
	if label == 0 {
		return nil
	}
	if _, ok := r.positions[label]; ok {
		err := NewRuntimeError(ErrorDuplicateLabel, "command label bound twice, keeping the first")
		err.Label = label
		return err
	}
	r.positions[label] = index
	return nil
}

// Freeze makes the table read-only.
func (r *References) Freeze() { r.frozen = true }

// Frozen reports whether the table is read-only.
func (r *References) Frozen() bool { return r.frozen }

// Position returns the command index of a label.
func (r *References) Position(label int) (int, error) {
	idx, ok := r.positions[label]
	if !ok {
		return 0, NewUnresolvedLabelError(label)
	}
	return idx, nil
}

// Object returns the object bound to a label.
func (r *References) Object(label int) (Object, error) {
	obj, ok := r.objects[label]
	if !ok {
		return Object{}, NewUnresolvedLabelError(label)
	}
	return obj, nil
}

// Counter resolves a label that must name a counter.
func (r *References) Counter(label int) (*Counter, error) {
	obj, err := r.Object(label)
	if err != nil {
		return nil, err
	}
	c, ok := obj.Counter()
	if !ok {
		return nil, NewWrongKindError(label, obj.Kind(), KindCounter)
	}
	return c, nil
}

// Dummy resolves a label that must name a dummy.
func (r *References) Dummy(label int) (*Dummy, error) {
	obj, err := r.Object(label)
	if err != nil {
		return nil, err
	}
	d, ok := obj.Dummy()
	if !ok {
		return nil, NewWrongKindError(label, obj.Kind(), KindDummy)
	}
	return d, nil
}

// Trigger resolves a label that must name a trigger.
func (r *References) Trigger(label int) (*Trigger, error) {
	obj, err := r.Object(label)
	if err != nil {
		return nil, err
	}
	t, ok := obj.Trigger()
	if !ok {
		return nil, NewWrongKindError(label, obj.Kind(), KindTrigger)
	}
	return t, nil
}

// Entity resolves a label to a host entity of one of the given kinds.
// A dummy is followed to the object it currently holds.
func (r *References) Entity(label int, kinds ...Kind) (Handle, error) {
	obj, err := r.Object(label)
	if err != nil {
		return 0, err
	}
	if d, ok := obj.Dummy(); ok {
		held, ok := d.Get()
		if !ok {
			return 0, NewWrongKindError(label, KindNone, kinds...)
		}
		obj = held
	}
	if !slices.Contains(kinds, obj.Kind()) {
		return 0, NewWrongKindError(label, obj.Kind(), kinds...)
	}
	h, _ := obj.Handle()
	return h, nil
}

// Vehicle resolves a vehicle label, following dummies.
func (r *References) Vehicle(label int) (Handle, error) {
	return r.Entity(label, KindVehicle)
}

// Door resolves a door label.
func (r *References) Door(label int) (Handle, error) {
	return r.Entity(label, KindDoor)
}

// ObjectLabels returns the bound object labels in ascending order.
func (r *References) ObjectLabels() []int {
	return slices.Sorted(maps.Keys(r.objects))
}

// PositionLabels returns the bound command labels in ascending order.
func (r *References) PositionLabels() []int {
	return slices.Sorted(maps.Keys(r.positions))
}

// labelOf finds the label bound to the same counter, dummy or trigger as obj.
func (r *References) labelOf(obj Object) (int, bool) {
	for label, o := range r.objects {
		if o.kind != obj.kind {
			continue
		}
		if o.counter == obj.counter && o.dummy == obj.dummy && o.trigger == obj.trigger && o.handle == obj.handle {
			return label, true
		}
	}
	return 0, false
}
