package diff

import (
	"reflect"
	"testing"

	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/spatial"
)

// twoLink builds a small two-link robot; mutate lets each test perturb
// one copy before comparing.
func twoLink(t *testing.T, mutate func(*model.Model)) *model.Model {
	t.Helper()
	m := model.New("robot")
	axis := spatial.Vec3{0, 0, 1}
	links := []*model.Link{
		{
			Name: "base",
			Inertial: &model.Inertial{
				Mass:          2.5,
				CenterOfMass:  spatial.Vec3{0, 0, 0.1},
				PrincipalAxes: spatial.IdentityQuat(),
				Inertia:       model.Inertia{Ixx: 0.1, Iyy: 0.2, Izz: 0.3},
			},
			Collisions: []model.Collision{{
				Name:     "base_col",
				Origin:   spatial.IdentityPose(),
				Geometry: model.Geometry{Kind: model.GeomBox, Size: spatial.Vec3{1, 2, 3}},
			}},
			Visuals: []model.Visual{{
				Origin:   spatial.IdentityPose(),
				Geometry: model.Geometry{Kind: model.GeomSphere, Radius: 0.5},
			}},
		},
		{Name: "arm"},
	}
	for _, l := range links {
		if err := m.AddLink(l); err != nil {
			t.Fatal(err)
		}
	}
	err := m.AddJoint(&model.Joint{
		Name:   "shoulder",
		Kind:   model.JointRevolute,
		Parent: "base",
		Child:  "arm",
		Origin: spatial.Pose{Pos: spatial.Vec3{0, 0, 0.2}, Rot: spatial.FromRPY(0, 0, 1.5)},
		Axis:   &axis,
	})
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(m)
	}
	return m
}

func TestCompare_IdenticalModelsAreEquivalent(t *testing.T) {
	r := Compare(twoLink(t, nil), twoLink(t, nil), DefaultOptions())
	if !r.Equivalent() {
		t.Fatalf("entries = %+v", r.Entries)
	}
}

func TestCompare_MassMismatchIsSingleEntry(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial.Mass = 2.6
	})
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if len(r.Entries) != 1 {
		t.Fatalf("entries = %+v", r.Entries)
	}
	e := r.Entries[0]
	if e.EntityKind != "link" || e.EntityID != "base" || e.FieldPath != "inertial.mass" {
		t.Errorf("entry = %+v", e)
	}
	if e.ValueA != "2.5" || e.ValueB != "2.6" || e.Classification != Mismatch {
		t.Errorf("entry = %+v", e)
	}
}

func TestCompare_WithinToleranceIsEquivalent(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial.Mass = 2.5 + 5e-7
	})
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if !r.Equivalent() {
		t.Fatalf("entries = %+v", r.Entries)
	}
}

func TestCompare_QuaternionDoubleCover(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		q := m.Joints["shoulder"].Origin.Rot
		m.Joints["shoulder"].Origin.Rot = spatial.Quat{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
	})
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if !r.Equivalent() {
		t.Fatalf("sign-flipped quaternion reported: %+v", r.Entries)
	}
}

func TestCompare_ToleranceMonotonicity(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial.Mass = 2.50001
		m.Links["base"].Collisions[0].Geometry.Size = spatial.Vec3{1, 2, 3.1}
	})
	var prev int
	first := true
	for _, tol := range []float64{1e-9, 1e-4, 1} {
		opts := DefaultOptions()
		opts.ToleranceLinear = tol
		n := len(Compare(twoLink(t, nil), b, opts).Entries)
		if !first && n > prev {
			t.Fatalf("mismatch count grew from %d to %d at tolerance %g", prev, n, tol)
		}
		prev, first = n, false
	}
	if prev != 0 {
		t.Errorf("entries remain at the loosest tolerance: %d", prev)
	}
}

func TestCompare_AddedAndRemovedEntities(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		if err := m.AddLink(&model.Link{Name: "tool"}); err != nil {
			t.Fatal(err)
		}
		if err := m.AddJoint(&model.Joint{Name: "wrist", Kind: model.JointFixed, Parent: "arm", Child: "tool"}); err != nil {
			t.Fatal(err)
		}
	})
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if len(r.Entries) != 2 {
		t.Fatalf("entries = %+v", r.Entries)
	}
	if r.Entries[0].EntityKind != "link" || r.Entries[0].EntityID != "tool" || r.Entries[0].Classification != AddedInB {
		t.Errorf("entry = %+v", r.Entries[0])
	}
	if r.Entries[1].EntityKind != "joint" || r.Entries[1].EntityID != "wrist" || r.Entries[1].Classification != AddedInB {
		t.Errorf("entry = %+v", r.Entries[1])
	}
}

func TestCompare_StructureMismatch(t *testing.T) {
	build := func(parent string) *model.Model {
		m := model.New("r")
		for _, l := range []string{"base", "arm", "tool"} {
			if err := m.AddLink(&model.Link{Name: l}); err != nil {
				t.Fatal(err)
			}
		}
		if err := m.AddJoint(&model.Joint{Name: "j1", Kind: model.JointFixed, Parent: "base", Child: "arm"}); err != nil {
			t.Fatal(err)
		}
		if err := m.AddJoint(&model.Joint{Name: "j2", Kind: model.JointFixed, Parent: parent, Child: "tool"}); err != nil {
			t.Fatal(err)
		}
		return m
	}
	r := Compare(build("arm"), build("base"), DefaultOptions())
	if len(r.Entries) != 1 {
		t.Fatalf("entries = %+v", r.Entries)
	}
	e := r.Entries[0]
	if e.Classification != UnmatchedStructure || e.FieldPath != "structure" {
		t.Errorf("entry = %+v", e)
	}
	if e.ValueA != "arm -> tool" || e.ValueB != "base -> tool" {
		t.Errorf("entry = %+v", e)
	}
}

func TestCompare_VisualsGatedByOption(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Visuals[0].Geometry.Radius = 0.6
	})

	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if !r.Equivalent() {
		t.Fatalf("visual diff reported without opt-in: %+v", r.Entries)
	}

	opts := DefaultOptions()
	opts.IncludeVisual = true
	r = Compare(twoLink(t, nil), b, opts)
	if len(r.Entries) != 1 || r.Entries[0].FieldPath != "visuals[0].geometry.radius" {
		t.Fatalf("entries = %+v", r.Entries)
	}
}

func TestCompare_FieldScopeRestriction(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial.Mass = 3
		m.Links["base"].Collisions[0].Geometry.Size = spatial.Vec3{9, 9, 9}
	})
	opts := DefaultOptions()
	opts.Fields = []Category{CategoryInertial}
	r := Compare(twoLink(t, nil), b, opts)
	if len(r.Entries) != 1 || r.Entries[0].FieldPath != "inertial.mass" {
		t.Fatalf("entries = %+v", r.Entries)
	}
}

func TestCompare_RelativeTolerance(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial.Mass = 2.5 * (1 + 1e-7)
	})
	opts := DefaultOptions()
	opts.Relative = true
	if r := Compare(twoLink(t, nil), b, opts); !r.Equivalent() {
		t.Fatalf("relative mode flagged a 1e-7 relative deviation: %+v", r.Entries)
	}
	opts.Relative = false
	opts.ToleranceLinear = 1e-8
	if r := Compare(twoLink(t, nil), b, opts); r.Equivalent() {
		t.Fatal("absolute mode with tight tolerance should flag the deviation")
	}
}

func TestCompare_MissingInertialReported(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial = nil
	})
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if len(r.Entries) != 1 {
		t.Fatalf("entries = %+v", r.Entries)
	}
	e := r.Entries[0]
	if e.FieldPath != "inertial" || e.Classification != RemovedFromB {
		t.Errorf("entry = %+v", e)
	}
}

func TestCompare_ModelNameMismatch(t *testing.T) {
	b := twoLink(t, nil)
	b.Name = "renamed"
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if len(r.Entries) != 1 || r.Entries[0].EntityKind != "model" || r.Entries[0].FieldPath != "name" {
		t.Fatalf("entries = %+v", r.Entries)
	}
}

func TestCompare_DeterministicOrdering(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Inertial.Mass = 3
		m.Links["base"].Collisions[0].Geometry.Size = spatial.Vec3{2, 2, 2}
		m.Joints["shoulder"].Kind = model.JointContinuous
		m.Joints["shoulder"].Axis = nil
	})
	r1 := Compare(twoLink(t, nil), b, DefaultOptions())
	r2 := Compare(twoLink(t, nil), b, DefaultOptions())
	if !reflect.DeepEqual(r1.Entries, r2.Entries) {
		t.Fatal("repeated runs disagree")
	}
	// Links sort before joints; within an entity, field paths are ordered.
	var paths []string
	for _, e := range r1.Entries {
		paths = append(paths, e.EntityKind+":"+e.EntityID+":"+e.FieldPath)
	}
	want := []string{
		"link:base:collisions[0].geometry.size",
		"link:base:inertial.mass",
		"joint:shoulder:axis",
		"joint:shoulder:kind",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("order = %v", paths)
	}
}

func TestCompare_CollisionCountMismatch(t *testing.T) {
	b := twoLink(t, func(m *model.Model) {
		m.Links["base"].Collisions = append(m.Links["base"].Collisions, model.Collision{
			Geometry: model.Geometry{Kind: model.GeomSphere, Radius: 1},
		})
	})
	r := Compare(twoLink(t, nil), b, DefaultOptions())
	if len(r.Entries) != 1 || r.Entries[0].FieldPath != "collisions" {
		t.Fatalf("entries = %+v", r.Entries)
	}
	if r.Entries[0].ValueA != "1 shapes" || r.Entries[0].ValueB != "2 shapes" {
		t.Errorf("entry = %+v", r.Entries[0])
	}
}
