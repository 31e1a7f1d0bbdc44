// Package model holds the format-independent representation of a robot:
// the kinematic tree, inertial properties, and collision/visual geometry
// every adapter produces and the diff engine consumes. Pure data plus the
// tree invariant; instances are built once during adaptation and treated
// as immutable afterwards.
package model

import (
	"fmt"
	"sort"

	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/spatial"
)

// JointKind enumerates the canonical joint taxonomy. Each format's own
// vocabulary is mapped onto this set by its adapter.
type JointKind string

const (
	JointFixed      JointKind = "fixed"
	JointRevolute   JointKind = "revolute"
	JointContinuous JointKind = "continuous"
	JointPrismatic  JointKind = "prismatic"
	JointPlanar     JointKind = "planar"
	JointFloating   JointKind = "floating"
)

// HasAxis reports whether the joint kind carries an actuation axis.
func (k JointKind) HasAxis() bool {
	switch k {
	case JointRevolute, JointContinuous, JointPrismatic, JointPlanar:
		return true
	}
	return false
}

// GeometryKind tags the geometry union.
type GeometryKind string

const (
	GeomBox      GeometryKind = "box"
	GeomSphere   GeometryKind = "sphere"
	GeomCylinder GeometryKind = "cylinder"
	GeomCapsule  GeometryKind = "capsule"
	GeomMesh     GeometryKind = "mesh"
)

// Source records where an entity came from in its source document.
// Line is zero for formats without line tracking (USD prims carry a prim
// path instead). Never compared.
type Source struct {
	File string
	Line int
	Path string
}

// Geometry is the tagged union over the canonical shape variants. Box
// extents are full extents in meters; cylinders and capsules carry radius
// and full length; meshes carry only a reference and scale, never triangle
// data.
type Geometry struct {
	Kind      GeometryKind
	Size      spatial.Vec3 // box
	Radius    float64      // sphere, cylinder, capsule
	Length    float64      // cylinder, capsule
	MeshURI   string       // mesh
	MeshScale spatial.Vec3 // mesh
	Source    Source
}

// Validate checks the dimension invariant: a required dimension that is
// negative or zero is a parse error, never silently clamped.
func (g *Geometry) Validate() error {
	bad := func(v float64) bool { return v <= 0 }
	switch g.Kind {
	case GeomBox:
		if bad(g.Size[0]) || bad(g.Size[1]) || bad(g.Size[2]) {
			return fmt.Errorf("box has non-positive extent %v", g.Size)
		}
	case GeomSphere:
		if bad(g.Radius) {
			return fmt.Errorf("sphere has non-positive radius %v", g.Radius)
		}
	case GeomCylinder, GeomCapsule:
		if bad(g.Radius) || bad(g.Length) {
			return fmt.Errorf("%s has non-positive dimension (radius=%v, length=%v)", g.Kind, g.Radius, g.Length)
		}
	}
	return nil
}

// Collision is one collision geometry placed in the link frame.
type Collision struct {
	Name     string
	Origin   spatial.Pose
	Geometry Geometry
	Source   Source
}

// Visual is one visual geometry placed in the link frame. Best-effort:
// diffed only on request, never required to match.
type Visual struct {
	Origin   spatial.Pose
	Geometry Geometry
	Source   Source
}

// Inertia holds the six independent components of the symmetric inertia
// tensor, expressed in the link frame (kg·m²).
type Inertia struct {
	Ixx, Ixy, Ixz, Iyy, Iyz, Izz float64
}

// Components returns the tensor components in fixed (xx, xy, xz, yy, yz,
// zz) order.
func (i Inertia) Components() [6]float64 {
	return [6]float64{i.Ixx, i.Ixy, i.Ixz, i.Iyy, i.Iyz, i.Izz}
}

// Inertial holds a link's mass properties. CenterOfMass is expressed in
// the link frame; PrincipalAxes orients the tensor frame (identity when
// the source states the tensor directly in the link frame).
type Inertial struct {
	Mass          float64
	CenterOfMass  spatial.Vec3
	PrincipalAxes spatial.Quat
	Inertia       Inertia
	Source        Source
}

// Link is a rigid body.
type Link struct {
	Name       string
	Inertial   *Inertial
	Collisions []Collision
	Visuals    []Visual
	Source     Source
}

// Joint is a kinematic constraint between two links. Parent and Child are
// non-owning references by name, resolved against the owning model. Axis
// is present only for kinds that actuate along one.
type Joint struct {
	Name   string
	Kind   JointKind
	Parent string
	Child  string
	Origin spatial.Pose
	Axis   *spatial.Vec3
	Source Source
}

// Model is the root entity produced by one adapter invocation. Links and
// joints form a tree: exactly one root link, every other link reachable
// through exactly one parent-joint path. Warnings carry the non-fatal
// unsupported-element reports accumulated during parsing.
type Model struct {
	Name     string
	Links    map[string]*Link
	Joints   map[string]*Joint
	Warnings []apperr.UnsupportedElementError
}

// New returns an empty model with the given name.
func New(name string) *Model {
	return &Model{
		Name:   name,
		Links:  make(map[string]*Link),
		Joints: make(map[string]*Joint),
	}
}

// AddLink inserts a link, rejecting duplicate names.
func (m *Model) AddLink(l *Link) error {
	if _, ok := m.Links[l.Name]; ok {
		return fmt.Errorf("duplicate link name: %q", l.Name)
	}
	m.Links[l.Name] = l
	return nil
}

// AddJoint inserts a joint, rejecting duplicate names.
func (m *Model) AddJoint(j *Joint) error {
	if _, ok := m.Joints[j.Name]; ok {
		return fmt.Errorf("duplicate joint name: %q", j.Name)
	}
	m.Joints[j.Name] = j
	return nil
}

// Warn records a non-fatal unsupported-element report.
func (m *Model) Warn(location, element string) {
	m.Warnings = append(m.Warnings, apperr.UnsupportedElementError{Location: location, Element: element})
}

// LinkNames returns link names in sorted order.
func (m *Model) LinkNames() []string {
	names := make([]string, 0, len(m.Links))
	for n := range m.Links {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// JointNames returns joint names in sorted order.
func (m *Model) JointNames() []string {
	names := make([]string, 0, len(m.Joints))
	for n := range m.Joints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
