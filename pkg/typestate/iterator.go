package typestate

// TypesObjectsIterator walks the objects of a state type by type in one
// forward pass:
//
//	it := NewTypesObjectsIterator(state)
//	for it.HasNextType() {
//		t := it.NextType()
//		for it.HasNextObject() {
//			o := it.NextObject()
//		}
//	}
//
// Moving to the next type skips any objects of the current type that were not
// consumed.
type TypesObjectsIterator struct {
	objects []*Object
	pos     cursor
	marked  cursor
}

type cursor struct {
	typeStart int // first object of the next type
	obj       int // next object of the current type
	typeEnd   int // end of the current type slice
}

// NewTypesObjectsIterator returns an iterator positioned before the first type of s.
func NewTypesObjectsIterator(s TypeState) *TypesObjectsIterator {
	return &TypesObjectsIterator{objects: s.Objects()}
}

// HasNextType reports whether another type follows the current one.
func (it *TypesObjectsIterator) HasNextType() bool {
	return it.pos.typeStart < len(it.objects)
}

// NextType advances to the next type and returns it.
func (it *TypesObjectsIterator) NextType() *Type {
	start := it.pos.typeStart
	end := typeEnd(it.objects, start)
	it.pos = cursor{typeStart: end, obj: start, typeEnd: end}
	return it.objects[start].typ
}

// HasNextObject reports whether the current type has unconsumed objects.
func (it *TypesObjectsIterator) HasNextObject() bool {
	return it.pos.obj < it.pos.typeEnd
}

// NextObject returns the next object of the current type.
func (it *TypesObjectsIterator) NextObject() *Object {
	o := it.objects[it.pos.obj]
	it.pos.obj++
	return o
}

// SkipType discards the remaining objects of the current type.
func (it *TypesObjectsIterator) SkipType() {
	it.pos.obj = it.pos.typeEnd
}

// Mark remembers the current position for Reset.
func (it *TypesObjectsIterator) Mark() {
	it.marked = it.pos
}

// Reset returns to the position saved by Mark, or to the start.
func (it *TypesObjectsIterator) Reset() {
	it.pos = it.marked
}
