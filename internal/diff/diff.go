// Package diff walks two aligned canonical models field by field and
// emits a deterministic, ordered report of their semantic differences.
package diff

import (
	"fmt"
	"sort"

	"github.com/robometric/robotdiff/internal/align"
	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/spatial"
)

// Category selects one comparable field family.
type Category string

const (
	CategoryKinematics Category = "kinematics"
	CategoryInertial   Category = "inertial"
	CategoryCollision  Category = "collision"
	CategoryVisual     Category = "visual"
)

// Categories lists every selectable category.
func Categories() []Category {
	return []Category{CategoryKinematics, CategoryInertial, CategoryCollision, CategoryVisual}
}

// ParseCategory resolves a user-supplied category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown field category %q", s)
}

// Classification tags one report entry.
type Classification string

const (
	Mismatch           Classification = "mismatch"
	AddedInB           Classification = "added_in_b"
	RemovedFromB       Classification = "removed_from_b"
	UnmatchedStructure Classification = "unmatched_structure"
)

// Options controls tolerances and comparison scope.
type Options struct {
	// ToleranceLinear bounds scalar and per-component vector deviation.
	// In relative mode it is interpreted as a relative tolerance against
	// the larger magnitude.
	ToleranceLinear float64
	// ToleranceAngular bounds orientation deviation, in radians.
	ToleranceAngular float64
	// Relative switches scalar comparison to relative tolerance.
	Relative bool
	// IncludeVisual adds the visual category when Fields is empty.
	IncludeVisual bool
	// Fields restricts comparison to the listed categories. Empty means
	// kinematics, inertial, and collision (plus visual if IncludeVisual).
	Fields []Category
}

// DefaultOptions returns the tolerances used when nothing is configured.
func DefaultOptions() Options {
	return Options{ToleranceLinear: 1e-6, ToleranceAngular: 1e-6}
}

// Enabled reports the effective category set.
func (o Options) Enabled() map[Category]bool {
	set := make(map[Category]bool, 4)
	if len(o.Fields) > 0 {
		for _, c := range o.Fields {
			set[c] = true
		}
		return set
	}
	set[CategoryKinematics] = true
	set[CategoryInertial] = true
	set[CategoryCollision] = true
	if o.IncludeVisual {
		set[CategoryVisual] = true
	}
	return set
}

// Entry is one reported discrepancy.
type Entry struct {
	EntityKind     string         `json:"entity_kind"` // model, link, joint
	EntityID       string         `json:"entity_id"`
	FieldPath      string         `json:"field_path"`
	ValueA         string         `json:"value_a"`
	ValueB         string         `json:"value_b"`
	Classification Classification `json:"classification"`
}

// Report is the ordered diff of two models. Zero entries means the models
// are semantically equivalent under the configured tolerance and scope.
type Report struct {
	NameA   string   `json:"name_a"`
	NameB   string   `json:"name_b"`
	Entries []Entry  `json:"entries"`
	// Warnings carries the unsupported-element notes accumulated by both
	// parses, so a renderer can surface what was ignored.
	Warnings []string `json:"warnings,omitempty"`
}

// Equivalent reports whether no differences were found.
func (r *Report) Equivalent() bool { return len(r.Entries) == 0 }

type differ struct {
	opts    Options
	enabled map[Category]bool
	entries []Entry
}

// Compare aligns and diffs two canonical models.
func Compare(a, b *model.Model, opts Options) *Report {
	d := &differ{opts: opts, enabled: opts.Enabled()}

	if a.Name != b.Name {
		d.add("model", a.Name, "name", a.Name, b.Name, Mismatch)
	}

	corr := align.Models(a, b)
	for _, name := range corr.Links.RemovedFromA {
		d.add("link", name, "", "present", "absent", RemovedFromB)
	}
	for _, name := range corr.Links.AddedInB {
		d.add("link", name, "", "absent", "present", AddedInB)
	}
	for _, name := range corr.Joints.RemovedFromA {
		d.add("joint", name, "", "present", "absent", RemovedFromB)
	}
	for _, name := range corr.Joints.AddedInB {
		d.add("joint", name, "", "absent", "present", AddedInB)
	}
	for _, name := range corr.StructureMismatches {
		ja, jb := a.Joints[name], b.Joints[name]
		d.add("joint", name, "structure",
			fmt.Sprintf("%s -> %s", ja.Parent, ja.Child),
			fmt.Sprintf("%s -> %s", jb.Parent, jb.Child),
			UnmatchedStructure)
	}

	for _, name := range corr.Links.Matched {
		d.diffLink(a.Links[name], b.Links[name])
	}
	if d.enabled[CategoryKinematics] {
		for _, name := range corr.Joints.Matched {
			d.diffJoint(a.Joints[name], b.Joints[name])
		}
	}

	sort.SliceStable(d.entries, func(i, j int) bool {
		ei, ej := d.entries[i], d.entries[j]
		if ri, rj := kindRank(ei.EntityKind), kindRank(ej.EntityKind); ri != rj {
			return ri < rj
		}
		if ei.EntityID != ej.EntityID {
			return ei.EntityID < ej.EntityID
		}
		return ei.FieldPath < ej.FieldPath
	})

	r := &Report{NameA: a.Name, NameB: b.Name, Entries: d.entries}
	for _, w := range a.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	for _, w := range b.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	return r
}

func kindRank(kind string) int {
	switch kind {
	case "model":
		return 0
	case "link":
		return 1
	default:
		return 2
	}
}

func (d *differ) add(kind, id, path, va, vb string, c Classification) {
	d.entries = append(d.entries, Entry{
		EntityKind:     kind,
		EntityID:       id,
		FieldPath:      path,
		ValueA:         va,
		ValueB:         vb,
		Classification: c,
	})
}

func (d *differ) diffLink(la, lb *model.Link) {
	if d.enabled[CategoryInertial] {
		d.diffInertial(la.Name, la.Inertial, lb.Inertial)
	}
	if d.enabled[CategoryCollision] {
		d.diffCollisions(la.Name, la.Collisions, lb.Collisions)
	}
	if d.enabled[CategoryVisual] {
		d.diffVisuals(la.Name, la.Visuals, lb.Visuals)
	}
}

func (d *differ) diffInertial(link string, ia, ib *model.Inertial) {
	switch {
	case ia == nil && ib == nil:
		return
	case ia == nil:
		d.add("link", link, "inertial", "absent", "present", AddedInB)
		return
	case ib == nil:
		d.add("link", link, "inertial", "present", "absent", RemovedFromB)
		return
	}

	if !d.scalarEqual(ia.Mass, ib.Mass) {
		d.add("link", link, "inertial.mass", num(ia.Mass), num(ib.Mass), Mismatch)
	}
	if !d.vecEqual(ia.CenterOfMass, ib.CenterOfMass) {
		d.add("link", link, "inertial.center_of_mass", vec(ia.CenterOfMass), vec(ib.CenterOfMass), Mismatch)
	}
	if !d.componentsEqual(ia.Inertia.Components(), ib.Inertia.Components()) {
		d.add("link", link, "inertial.inertia",
			comps(ia.Inertia.Components()), comps(ib.Inertia.Components()), Mismatch)
	}
	if !d.quatEqual(ia.PrincipalAxes, ib.PrincipalAxes) {
		d.add("link", link, "inertial.principal_axes", quat(ia.PrincipalAxes), quat(ib.PrincipalAxes), Mismatch)
	}
}

func (d *differ) diffCollisions(link string, ca, cb []model.Collision) {
	if len(ca) != len(cb) {
		d.add("link", link, "collisions",
			fmt.Sprintf("%d shapes", len(ca)), fmt.Sprintf("%d shapes", len(cb)), Mismatch)
		return
	}
	for i := range ca {
		prefix := fmt.Sprintf("collisions[%d]", i)
		if ca[i].Name != cb[i].Name {
			d.add("link", link, prefix+".name", ca[i].Name, cb[i].Name, Mismatch)
		}
		d.diffPose(link, prefix, ca[i].Origin, cb[i].Origin)
		d.diffGeometry(link, prefix, ca[i].Geometry, cb[i].Geometry)
	}
}

func (d *differ) diffVisuals(link string, va, vb []model.Visual) {
	if len(va) != len(vb) {
		d.add("link", link, "visuals",
			fmt.Sprintf("%d shapes", len(va)), fmt.Sprintf("%d shapes", len(vb)), Mismatch)
		return
	}
	for i := range va {
		prefix := fmt.Sprintf("visuals[%d]", i)
		d.diffPose(link, prefix, va[i].Origin, vb[i].Origin)
		d.diffGeometry(link, prefix, va[i].Geometry, vb[i].Geometry)
	}
}

func (d *differ) diffPose(link, prefix string, pa, pb spatial.Pose) {
	if !d.vecEqual(pa.Pos, pb.Pos) {
		d.add("link", link, prefix+".origin.position", vec(pa.Pos), vec(pb.Pos), Mismatch)
	}
	if !d.quatEqual(pa.Rot, pb.Rot) {
		d.add("link", link, prefix+".origin.orientation", quat(pa.Rot), quat(pb.Rot), Mismatch)
	}
}

func (d *differ) diffGeometry(link, prefix string, ga, gb model.Geometry) {
	if ga.Kind != gb.Kind {
		d.add("link", link, prefix+".geometry.kind", string(ga.Kind), string(gb.Kind), Mismatch)
		return
	}
	switch ga.Kind {
	case model.GeomBox:
		if !d.vecEqual(ga.Size, gb.Size) {
			d.add("link", link, prefix+".geometry.size", vec(ga.Size), vec(gb.Size), Mismatch)
		}
	case model.GeomSphere:
		if !d.scalarEqual(ga.Radius, gb.Radius) {
			d.add("link", link, prefix+".geometry.radius", num(ga.Radius), num(gb.Radius), Mismatch)
		}
	case model.GeomCylinder, model.GeomCapsule:
		if !d.scalarEqual(ga.Radius, gb.Radius) {
			d.add("link", link, prefix+".geometry.radius", num(ga.Radius), num(gb.Radius), Mismatch)
		}
		if !d.scalarEqual(ga.Length, gb.Length) {
			d.add("link", link, prefix+".geometry.length", num(ga.Length), num(gb.Length), Mismatch)
		}
	case model.GeomMesh:
		if ga.MeshURI != gb.MeshURI {
			d.add("link", link, prefix+".geometry.mesh", ga.MeshURI, gb.MeshURI, Mismatch)
		}
		if !d.vecEqual(ga.MeshScale, gb.MeshScale) {
			d.add("link", link, prefix+".geometry.mesh_scale", vec(ga.MeshScale), vec(gb.MeshScale), Mismatch)
		}
	}
}

func (d *differ) diffJoint(ja, jb *model.Joint) {
	name := ja.Name
	if ja.Kind != jb.Kind {
		d.add("joint", name, "kind", string(ja.Kind), string(jb.Kind), Mismatch)
	}
	if !d.vecEqual(ja.Origin.Pos, jb.Origin.Pos) {
		d.add("joint", name, "origin.position", vec(ja.Origin.Pos), vec(jb.Origin.Pos), Mismatch)
	}
	if !d.quatEqual(ja.Origin.Rot, jb.Origin.Rot) {
		d.add("joint", name, "origin.orientation", quat(ja.Origin.Rot), quat(jb.Origin.Rot), Mismatch)
	}
	switch {
	case ja.Axis == nil && jb.Axis == nil:
	case ja.Axis == nil:
		d.add("joint", name, "axis", "absent", "present", AddedInB)
	case jb.Axis == nil:
		d.add("joint", name, "axis", "present", "absent", RemovedFromB)
	case !d.vecEqual(*ja.Axis, *jb.Axis):
		d.add("joint", name, "axis", vec(*ja.Axis), vec(*jb.Axis), Mismatch)
	}
}

// scalarEqual applies the configured tolerance; mismatch only when the
// deviation exceeds it.
func (d *differ) scalarEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if d.opts.Relative {
		ma, mb := a, b
		if ma < 0 {
			ma = -ma
		}
		if mb < 0 {
			mb = -mb
		}
		scale := ma
		if mb > scale {
			scale = mb
		}
		return diff <= d.opts.ToleranceLinear*scale
	}
	return diff <= d.opts.ToleranceLinear
}

func (d *differ) vecEqual(a, b spatial.Vec3) bool {
	for i := range a {
		if !d.scalarEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (d *differ) componentsEqual(a, b [6]float64) bool {
	for i := range a {
		if !d.scalarEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (d *differ) quatEqual(a, b spatial.Quat) bool {
	return spatial.AngularDistance(a, b) <= d.opts.ToleranceAngular
}

func num(v float64) string { return fmt.Sprintf("%g", v) }

func vec(v spatial.Vec3) string {
	return fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
}

func comps(c [6]float64) string {
	return fmt.Sprintf("(%g, %g, %g, %g, %g, %g)", c[0], c[1], c[2], c[3], c[4], c[5])
}

func quat(q spatial.Quat) string {
	return fmt.Sprintf("(%g, %g, %g, %g)", q.W, q.X, q.Y, q.Z)
}
