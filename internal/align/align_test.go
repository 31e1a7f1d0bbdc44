package align

import (
	"reflect"
	"testing"

	"github.com/robometric/robotdiff/internal/model"
)

func chain(t *testing.T, name string, links []string, joints map[string][2]string) *model.Model {
	t.Helper()
	m := model.New(name)
	for _, l := range links {
		if err := m.AddLink(&model.Link{Name: l}); err != nil {
			t.Fatal(err)
		}
	}
	for j, pc := range joints {
		if err := m.AddJoint(&model.Joint{Name: j, Kind: model.JointFixed, Parent: pc[0], Child: pc[1]}); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestModels_ExactMatch(t *testing.T) {
	a := chain(t, "r", []string{"base", "arm"}, map[string][2]string{"j1": {"base", "arm"}})
	b := chain(t, "r", []string{"base", "arm"}, map[string][2]string{"j1": {"base", "arm"}})

	c := Models(a, b)
	if !reflect.DeepEqual(c.Links.Matched, []string{"arm", "base"}) {
		t.Errorf("matched links = %v", c.Links.Matched)
	}
	if !reflect.DeepEqual(c.Joints.Matched, []string{"j1"}) {
		t.Errorf("matched joints = %v", c.Joints.Matched)
	}
	if len(c.Links.AddedInB)+len(c.Links.RemovedFromA)+len(c.StructureMismatches) != 0 {
		t.Errorf("unexpected leftovers: %+v", c)
	}
}

func TestModels_AddedAndRemoved(t *testing.T) {
	a := chain(t, "r", []string{"base", "old"}, map[string][2]string{"j_old": {"base", "old"}})
	b := chain(t, "r", []string{"base", "new"}, map[string][2]string{"j_new": {"base", "new"}})

	c := Models(a, b)
	if !reflect.DeepEqual(c.Links.AddedInB, []string{"new"}) {
		t.Errorf("added links = %v", c.Links.AddedInB)
	}
	if !reflect.DeepEqual(c.Links.RemovedFromA, []string{"old"}) {
		t.Errorf("removed links = %v", c.Links.RemovedFromA)
	}
	if !reflect.DeepEqual(c.Joints.AddedInB, []string{"j_new"}) {
		t.Errorf("added joints = %v", c.Joints.AddedInB)
	}
	if !reflect.DeepEqual(c.Joints.RemovedFromA, []string{"j_old"}) {
		t.Errorf("removed joints = %v", c.Joints.RemovedFromA)
	}
}

func TestModels_StructureMismatch(t *testing.T) {
	a := chain(t, "r", []string{"base", "arm", "tool"},
		map[string][2]string{"j1": {"base", "arm"}, "j2": {"arm", "tool"}})
	// Same joint names, but j2 hangs off base instead of arm.
	b := chain(t, "r", []string{"base", "arm", "tool"},
		map[string][2]string{"j1": {"base", "arm"}, "j2": {"base", "tool"}})

	c := Models(a, b)
	if !reflect.DeepEqual(c.StructureMismatches, []string{"j2"}) {
		t.Errorf("structure mismatches = %v", c.StructureMismatches)
	}
	// A structurally mismatched joint must not also be field-compared.
	if !reflect.DeepEqual(c.Joints.Matched, []string{"j1"}) {
		t.Errorf("matched joints = %v", c.Joints.Matched)
	}
}
