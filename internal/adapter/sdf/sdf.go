// Package sdf parses SDFormat robot descriptions into the canonical model.
//
// SDF poses are six-value position+euler strings by default, with an
// opt-in quaternion encoding selected by the rotation_format attribute.
// The adapter enforces the frame discipline the comparison relies on:
// joint poses must be stated relative to the parent link, link poses
// relative to the parent joint and equal to the identity, so that every
// canonical origin is parent-frame relative.
package sdf

import (
	"fmt"

	"github.com/robometric/robotdiff/internal/adapter/xmldoc"
	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/spatial"
)

var jointKinds = map[string]model.JointKind{
	"fixed":      model.JointFixed,
	"revolute":   model.JointRevolute,
	"continuous": model.JointContinuous,
	"prismatic":  model.JointPrismatic,
	"planar":     model.JointPlanar,
	"ball":       model.JointContinuous,
	"floating":   model.JointFloating,
}

type parser struct {
	file string
	m    *model.Model
}

// Parse converts an SDF document into a canonical model.
func Parse(file string, data []byte) (*model.Model, error) {
	root, err := xmldoc.Parse(data)
	if err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error(), Err: err}
	}
	if root.Name != "sdf" {
		return nil, &apperr.ParseError{File: file, Location: loc(root), Reason: fmt.Sprintf("expected <sdf> document element, got <%s>", root.Name)}
	}
	me := root.Find("model")
	if me == nil {
		return nil, &apperr.ParseError{File: file, Location: loc(root), Reason: "missing required <model> element"}
	}

	p := &parser{file: file, m: model.New(me.AttrDefault("name", "model"))}

	// Joints first: link pose validation needs to know each link's parent
	// joint.
	for _, je := range me.FindAll("joint") {
		joint, err := p.parseJoint(je)
		if err != nil {
			return nil, err
		}
		if err := p.m.AddJoint(joint); err != nil {
			return nil, p.errf(je, "%v", err)
		}
	}
	for _, le := range me.FindAll("link") {
		link, err := p.parseLink(le)
		if err != nil {
			return nil, err
		}
		if err := p.m.AddLink(link); err != nil {
			return nil, p.errf(le, "%v", err)
		}
	}

	if err := p.m.Validate(); err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error()}
	}
	return p.m, nil
}

func (p *parser) parseJoint(je *xmldoc.Element) (*model.Joint, error) {
	name, ok := je.Attr("name")
	if !ok {
		return nil, p.errf(je, "joint missing name attribute")
	}
	typ := je.AttrDefault("type", "")
	kind, known := jointKinds[typ]
	if !known {
		p.m.Warn(loc(je), fmt.Sprintf("joint type %q", typ))
		kind = model.JointFixed
	}

	parent := je.ChildText("parent", "")
	child := je.ChildText("child", "")
	if parent == "" || child == "" {
		return nil, p.errf(je, "joint %q missing required <parent>/<child> element", name)
	}

	pe := je.Find("pose")
	if pe == nil || pe.AttrDefault("relative_to", "") != parent {
		return nil, p.errf(je, "joint %q pose must have relative_to=%q", name, parent)
	}
	origin, err := p.parsePose(je)
	if err != nil {
		return nil, err
	}

	j := &model.Joint{
		Name:   name,
		Kind:   kind,
		Parent: parent,
		Child:  child,
		Origin: origin,
		Source: p.src(je),
	}
	if kind.HasAxis() {
		axis := spatial.Vec3{1, 0, 0}
		if ae := je.Find("axis"); ae != nil {
			v, err := xmldoc.Floats(ae.ChildText("xyz", "1 0 0"), 3)
			if err != nil {
				return nil, p.errf(ae, "axis: %v", err)
			}
			axis = spatial.Vec3{v[0], v[1], v[2]}
		}
		j.Axis = &axis
	}
	return j, nil
}

func (p *parser) parseLink(le *xmldoc.Element) (*model.Link, error) {
	name, ok := le.Attr("name")
	if !ok {
		return nil, p.errf(le, "link missing name attribute")
	}

	// A non-root link's pose must be stated relative to its parent joint
	// and be the identity, so the joint origin fully determines the frame.
	var parentJoint string
	for jn, j := range p.m.Joints {
		if j.Child == name {
			parentJoint = jn
			break
		}
	}
	if parentJoint != "" {
		pe := le.Find("pose")
		if pe == nil || pe.AttrDefault("relative_to", "") != parentJoint {
			return nil, p.errf(le, "link %q pose must have relative_to=%q", name, parentJoint)
		}
	}
	pose, err := p.parsePose(le)
	if err != nil {
		return nil, err
	}
	if !pose.IsIdentity() {
		return nil, p.errf(le, "link %q pose must be the identity", name)
	}

	link := &model.Link{Name: name, Source: p.src(le)}
	if link.Inertial, err = p.parseInertial(le); err != nil {
		return nil, err
	}
	for _, ce := range le.FindAll("collision") {
		geom, ok, err := p.parseGeometry(ce)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		origin, err := p.parsePose(ce)
		if err != nil {
			return nil, err
		}
		link.Collisions = append(link.Collisions, model.Collision{
			Name:     ce.AttrDefault("name", ""),
			Origin:   origin,
			Geometry: geom,
			Source:   p.src(ce),
		})
	}
	for _, ve := range le.FindAll("visual") {
		geom, ok, err := p.parseGeometry(ve)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		origin, err := p.parsePose(ve)
		if err != nil {
			return nil, err
		}
		link.Visuals = append(link.Visuals, model.Visual{
			Origin:   origin,
			Geometry: geom,
			Source:   p.src(ve),
		})
	}
	return link, nil
}

func (p *parser) parseInertial(le *xmldoc.Element) (*model.Inertial, error) {
	ie := le.Find("inertial")
	if ie == nil {
		return nil, nil
	}
	origin, err := p.parsePose(ie)
	if err != nil {
		return nil, err
	}
	inertial := &model.Inertial{
		CenterOfMass:  origin.Pos,
		PrincipalAxes: origin.Rot,
		Source:        p.src(ie),
	}
	if inertial.Mass, err = xmldoc.Float(ie.ChildText("mass", "0")); err != nil {
		return nil, p.errf(ie, "mass: %v", err)
	}
	if inertial.Mass < 0 {
		return nil, p.errf(ie, "negative mass %v", inertial.Mass)
	}
	if te := ie.Find("inertia"); te != nil {
		dst := map[string]*float64{
			"ixx": &inertial.Inertia.Ixx, "ixy": &inertial.Inertia.Ixy, "ixz": &inertial.Inertia.Ixz,
			"iyy": &inertial.Inertia.Iyy, "iyz": &inertial.Inertia.Iyz, "izz": &inertial.Inertia.Izz,
		}
		for tag, ptr := range dst {
			if *ptr, err = xmldoc.Float(te.ChildText(tag, "0")); err != nil {
				return nil, p.errf(te, "inertia %s: %v", tag, err)
			}
		}
	}
	return inertial, nil
}

func (p *parser) parseGeometry(parent *xmldoc.Element) (model.Geometry, bool, error) {
	ge := parent.Find("geometry")
	if ge == nil {
		return model.Geometry{}, false, p.errf(parent, "<%s> missing required <geometry> child", parent.Name)
	}
	if len(ge.Children) == 0 {
		return model.Geometry{}, false, p.errf(ge, "<geometry> has no shape child")
	}
	se := ge.Children[0]
	geom := model.Geometry{Source: p.src(se)}

	switch se.Name {
	case "box":
		size, err := xmldoc.Floats(se.ChildText("size", "0 0 0"), 3)
		if err != nil {
			return geom, false, p.errf(se, "box size: %v", err)
		}
		geom.Kind = model.GeomBox
		geom.Size = spatial.Vec3{size[0], size[1], size[2]}
	case "sphere":
		r, err := p.requiredChildFloat(se, "radius")
		if err != nil {
			return geom, false, err
		}
		geom.Kind = model.GeomSphere
		geom.Radius = r
	case "cylinder", "capsule":
		r, err := p.requiredChildFloat(se, "radius")
		if err != nil {
			return geom, false, err
		}
		l, err := p.requiredChildFloat(se, "length")
		if err != nil {
			return geom, false, err
		}
		if se.Name == "capsule" {
			geom.Kind = model.GeomCapsule
		} else {
			geom.Kind = model.GeomCylinder
		}
		geom.Radius = r
		geom.Length = l
	case "mesh":
		uri := se.ChildText("uri", "")
		if uri == "" {
			return geom, false, p.errf(se, "mesh missing required <uri> element")
		}
		scale, err := xmldoc.Floats(se.ChildText("scale", "1 1 1"), 3)
		if err != nil {
			return geom, false, p.errf(se, "mesh scale: %v", err)
		}
		geom.Kind = model.GeomMesh
		geom.MeshURI = uri
		geom.MeshScale = spatial.Vec3{scale[0], scale[1], scale[2]}
	default:
		p.m.Warn(loc(se), se.Name)
		return geom, false, nil
	}

	if err := geom.Validate(); err != nil {
		return geom, false, p.errf(se, "%v", err)
	}
	return geom, true, nil
}

// parsePose reads an optional <pose> child. The default encoding is six
// values (x y z roll pitch yaw); rotation_format="quat_xyzw" selects the
// seven-value quaternion encoding.
func (p *parser) parsePose(parent *xmldoc.Element) (spatial.Pose, error) {
	pe := parent.Find("pose")
	if pe == nil || pe.Text == "" {
		return spatial.IdentityPose(), nil
	}

	switch rf := pe.AttrDefault("rotation_format", "euler_rpy"); rf {
	case "euler_rpy":
		v, err := xmldoc.Floats(pe.Text, 6)
		if err != nil {
			return spatial.Pose{}, p.errf(pe, "pose: %v", err)
		}
		return spatial.Pose{
			Pos: spatial.Vec3{v[0], v[1], v[2]},
			Rot: spatial.FromRPY(v[3], v[4], v[5]),
		}, nil
	case "quat_xyzw":
		v, err := xmldoc.Floats(pe.Text, 7)
		if err != nil {
			return spatial.Pose{}, p.errf(pe, "pose: %v", err)
		}
		q := spatial.Quat{W: v[6], X: v[3], Y: v[4], Z: v[5]}
		return spatial.Pose{
			Pos: spatial.Vec3{v[0], v[1], v[2]},
			Rot: q.Canonical(),
		}, nil
	default:
		return spatial.Pose{}, p.errf(pe, "unknown rotation_format %q", rf)
	}
}

func (p *parser) requiredChildFloat(e *xmldoc.Element, name string) (float64, error) {
	s := e.ChildText(name, "")
	if s == "" {
		return 0, p.errf(e, "<%s> missing required <%s> element", e.Name, name)
	}
	v, err := xmldoc.Float(s)
	if err != nil {
		return 0, p.errf(e, "%s: %v", name, err)
	}
	return v, nil
}

func (p *parser) src(e *xmldoc.Element) model.Source {
	return model.Source{File: p.file, Line: e.Line}
}

func (p *parser) errf(e *xmldoc.Element, format string, args ...any) error {
	return &apperr.ParseError{File: p.file, Location: loc(e), Reason: fmt.Sprintf(format, args...)}
}

func loc(e *xmldoc.Element) string {
	return fmt.Sprintf("line %d", e.Line)
}
