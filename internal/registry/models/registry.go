package models

import (
	"fmt"

	id "rollcall/pkg/domain"
)

// Registry is the collection of students and their attendance counters.
//
// Invariants:
//   - every address in the student map appears exactly once in the index
//   - the index holds no address absent from the map
//   - positions[a] is the index slot of a
//
// Removal uses swap-with-last: the last index entry moves into the removed
// slot and the index shrinks by one. Relative order of the remaining entries
// is therefore not stable across removals; enumeration order is only
// meaningful between two mutations.
//
// Registry is not safe for concurrent use. Ledger backends serialize access
// through their sequencer; the cache swaps whole copies.
type Registry struct {
	students  map[id.Address]Student
	index     []id.Address
	positions map[id.Address]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		students:  make(map[id.Address]Student),
		positions: make(map[id.Address]int),
	}
}

// AddStudent registers address with a zero attendance count.
func (r *Registry) AddStudent(address id.Address, name string) (Student, error) {
	if _, exists := r.students[address]; exists {
		return Student{}, ErrDuplicateStudent
	}
	s := Student{Address: address, Name: name}
	r.Put(s)
	return s, nil
}

// RemoveStudent deletes the student and its index entry in one step.
func (r *Registry) RemoveStudent(address id.Address) error {
	if !r.Delete(address) {
		return ErrNotFound
	}
	return nil
}

// MarkAttendance increments the student's count by exactly one.
func (r *Registry) MarkAttendance(address id.Address) (Student, error) {
	s, ok := r.students[address]
	if !ok {
		return Student{}, ErrNotRegistered
	}
	s.AttendanceCount++
	r.students[address] = s
	return s, nil
}

// Apply executes a typed command and returns the affected student's
// post-state. For removals the returned student is the removed record.
func (r *Registry) Apply(cmd Command) (Student, error) {
	switch c := cmd.(type) {
	case AddStudentCommand:
		name, err := NormalizeName(c.Name)
		if err != nil {
			return Student{}, err
		}
		return r.AddStudent(c.Address, name)
	case RemoveStudentCommand:
		s, ok := r.students[c.Address]
		if !ok {
			return Student{}, ErrNotFound
		}
		r.Delete(c.Address)
		return s, nil
	case MarkAttendanceCommand:
		return r.MarkAttendance(c.Address)
	default:
		return Student{}, fmt.Errorf("unsupported command %T", cmd)
	}
}

// Put inserts s at the end of the index, or overwrites the record in place
// when the address is already registered.
func (r *Registry) Put(s Student) {
	if _, exists := r.students[s.Address]; !exists {
		r.positions[s.Address] = len(r.index)
		r.index = append(r.index, s.Address)
	}
	r.students[s.Address] = s
}

// Delete removes address with swap-with-last compaction. It reports whether
// the address was present.
func (r *Registry) Delete(address id.Address) bool {
	pos, ok := r.positions[address]
	if !ok {
		return false
	}
	last := len(r.index) - 1
	if pos != last {
		moved := r.index[last]
		r.index[pos] = moved
		r.positions[moved] = pos
	}
	r.index = r.index[:last]
	delete(r.positions, address)
	delete(r.students, address)
	return true
}

// GetAttendance returns the count for address, zero when unregistered.
func (r *Registry) GetAttendance(address id.Address) uint64 {
	return r.students[address].AttendanceCount
}

// StudentCount returns the number of registered students.
func (r *Registry) StudentCount() uint64 {
	return uint64(len(r.index))
}

// StudentAddressAt returns the address at the 0-based index position.
func (r *Registry) StudentAddressAt(i uint64) (id.Address, bool) {
	if i >= uint64(len(r.index)) {
		return id.Address{}, false
	}
	return r.index[i], true
}

// StudentDetails returns the detail record, zero when unregistered.
func (r *Registry) StudentDetails(address id.Address) StudentDetails {
	return r.students[address].Details()
}

// Student returns the full record for address.
func (r *Registry) Student(address id.Address) (Student, bool) {
	s, ok := r.students[address]
	return s, ok
}

// Contains reports whether address is registered.
func (r *Registry) Contains(address id.Address) bool {
	_, ok := r.students[address]
	return ok
}

// Enumerate yields students in current index order.
func (r *Registry) Enumerate() []Student {
	out := make([]Student, 0, len(r.index))
	for _, a := range r.index {
		out = append(out, r.students[a])
	}
	return out
}

// Clone returns a deep copy.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		students:  make(map[id.Address]Student, len(r.students)),
		index:     make([]id.Address, len(r.index)),
		positions: make(map[id.Address]int, len(r.positions)),
	}
	copy(c.index, r.index)
	for k, v := range r.students {
		c.students[k] = v
	}
	for k, v := range r.positions {
		c.positions[k] = v
	}
	return c
}

// CheckInvariants verifies map/index consistency.
func (r *Registry) CheckInvariants() error {
	if len(r.students) != len(r.index) || len(r.positions) != len(r.index) {
		return fmt.Errorf("size mismatch: students=%d index=%d positions=%d",
			len(r.students), len(r.index), len(r.positions))
	}
	for i, a := range r.index {
		if _, ok := r.students[a]; !ok {
			return fmt.Errorf("index entry %d (%s) has no student", i, a)
		}
		if r.positions[a] != i {
			return fmt.Errorf("index entry %d (%s) recorded at position %d", i, a, r.positions[a])
		}
	}
	return nil
}
