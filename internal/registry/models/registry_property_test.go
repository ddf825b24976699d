package models

import (
	"testing"

	"pgregory.net/rapid"

	id "rollcall/pkg/domain"
)

// TestRegistry_InvariantsHold drives random operation sequences against the
// registry and checks map/index consistency after every step, plus the
// enumeration round-trip: N successful adds and M successful removals leave
// exactly N-M enumerable students.
func TestRegistry_InvariantsHold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pool := make([]id.Address, rapid.IntRange(1, 8).Draw(rt, "poolSize"))
		for i := range pool {
			pool[i] = id.AddressFromBytes([]byte{byte(i + 1)})
		}

		r := NewRegistry()
		model := map[id.Address]uint64{}
		adds, removes := 0, 0

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			a := rapid.SampledFrom(pool).Draw(rt, "address")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_, err := r.AddStudent(a, "student")
				_, present := model[a]
				if present != (err != nil) {
					rt.Fatalf("add %s: present=%v err=%v", a, present, err)
				}
				if err == nil {
					model[a] = 0
					adds++
				}
			case 1:
				err := r.RemoveStudent(a)
				_, present := model[a]
				if present != (err == nil) {
					rt.Fatalf("remove %s: present=%v err=%v", a, present, err)
				}
				if err == nil {
					delete(model, a)
					removes++
				}
			case 2:
				_, err := r.MarkAttendance(a)
				if _, present := model[a]; present {
					if err != nil {
						rt.Fatalf("mark %s: %v", a, err)
					}
					model[a]++
				} else if err == nil {
					rt.Fatalf("mark of unregistered %s succeeded", a)
				}
			}

			if err := r.CheckInvariants(); err != nil {
				rt.Fatal(err)
			}
			if r.StudentCount() != uint64(len(model)) {
				rt.Fatalf("count %d, want %d", r.StudentCount(), len(model))
			}
		}

		students := r.Enumerate()
		if len(students) != adds-removes {
			rt.Fatalf("enumerated %d students, want %d", len(students), adds-removes)
		}
		for _, s := range students {
			want, ok := model[s.Address]
			if !ok {
				rt.Fatalf("enumerated %s which is not registered", s.Address)
			}
			if s.AttendanceCount != want {
				rt.Fatalf("%s count %d, want %d", s.Address, s.AttendanceCount, want)
			}
		}
	})
}
