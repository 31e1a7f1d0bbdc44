// Package urdf parses URDF robot descriptions into the canonical model.
//
// URDF states orientations as extrinsic roll-pitch-yaw, box extents as
// full extents, and all lengths in meters, so only the rotation encoding
// needs normalizing.
package urdf

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
	"floating":   model.JointFloating,
}

type parser struct {
	file string
	m    *model.Model
}

// Parse converts a URDF document into a canonical model.
func Parse(file string, data []byte) (*model.Model, error) {
	root, err := xmldoc.Parse(data)
	if err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error(), Err: err}
	}
	if root.Name != "robot" {
		return nil, &apperr.ParseError{File: file, Location: loc(root), Reason: fmt.Sprintf("expected <robot> document element, got <%s>", root.Name)}
	}

	p := &parser{file: file, m: model.New(root.AttrDefault("name", "robot"))}

	for _, le := range root.FindAll("link") {
		link, err := p.parseLink(le)
		if err != nil {
			return nil, err
		}
		if err := p.m.AddLink(link); err != nil {
			return nil, p.errf(le, "%v", err)
		}
	}
	for _, je := range root.FindAll("joint") {
		joint, err := p.parseJoint(je)
		if err != nil {
			return nil, err
		}
		if err := p.m.AddJoint(joint); err != nil {
			return nil, p.errf(je, "%v", err)
		}
	}

	if err := p.m.Validate(); err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error()}
	}
	return p.m, nil
}

func (p *parser) parseLink(le *xmldoc.Element) (*model.Link, error) {
	name, ok := le.Attr("name")
	if !ok {
		return nil, p.errf(le, "link missing name attribute")
	}
	link := &model.Link{Name: name, Source: p.src(le)}

	var err error
	if link.Inertial, err = p.parseInertial(le); err != nil {
		return nil, err
	}
	for _, ce := range le.FindAll("collision") {
		geom, ok, err := p.parseGeometry(ce)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // unsupported shape, recorded as a warning
		}
		origin, err := p.parseOrigin(ce)
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
		origin, err := p.parseOrigin(ve)
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
	origin, err := p.parseOrigin(ie)
	if err != nil {
		return nil, err
	}
	inertial := &model.Inertial{
		CenterOfMass:  origin.Pos,
		PrincipalAxes: origin.Rot,
		Source:        p.src(ie),
	}
	if me := ie.Find("mass"); me != nil {
		if inertial.Mass, err = xmldoc.Float(me.AttrDefault("value", "0")); err != nil {
			return nil, p.errf(me, "mass: %v", err)
		}
	}
	if inertial.Mass < 0 {
		return nil, p.errf(ie, "negative mass %v", inertial.Mass)
	}
	if te := ie.Find("inertia"); te != nil {
		dst := map[string]*float64{
			"ixx": &inertial.Inertia.Ixx, "ixy": &inertial.Inertia.Ixy, "ixz": &inertial.Inertia.Ixz,
			"iyy": &inertial.Inertia.Iyy, "iyz": &inertial.Inertia.Iyz, "izz": &inertial.Inertia.Izz,
		}
		for attr, ptr := range dst {
			if *ptr, err = xmldoc.Float(te.AttrDefault(attr, "0")); err != nil {
				return nil, p.errf(te, "inertia %s: %v", attr, err)
			}
		}
	}
	return inertial, nil
}

// parseGeometry extracts the shape under the required <geometry> child.
// Returns ok=false (with a warning recorded) for shape variants the tool
// does not model.
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
		size, err := xmldoc.Floats(se.AttrDefault("size", "0 0 0"), 3)
		if err != nil {
			return geom, false, p.errf(se, "box size: %v", err)
		}
		geom.Kind = model.GeomBox
		geom.Size = spatial.Vec3{size[0], size[1], size[2]}
	case "sphere":
		r, err := p.requiredFloat(se, "radius")
		if err != nil {
			return geom, false, err
		}
		geom.Kind = model.GeomSphere
		geom.Radius = r
	case "cylinder":
		r, err := p.requiredFloat(se, "radius")
		if err != nil {
			return geom, false, err
		}
		l, err := p.requiredFloat(se, "length")
		if err != nil {
			return geom, false, err
		}
		geom.Kind = model.GeomCylinder
		geom.Radius = r
		geom.Length = l
	case "mesh":
		uri, ok := se.Attr("filename")
		if !ok {
			return geom, false, p.errf(se, "mesh missing filename attribute")
		}
		scale, err := xmldoc.Floats(se.AttrDefault("scale", "1 1 1"), 3)
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

func (p *parser) parseJoint(je *xmldoc.Element) (*model.Joint, error) {
	name, ok := je.Attr("name")
	if !ok {
		return nil, p.errf(je, "joint missing name attribute")
	}
	typ := je.AttrDefault("type", "")
	kind, known := jointKinds[typ]
	if !known {
		// Unknown joint variant: warn and keep the tree connected with a
		// fixed joint so the rest of the model stays comparable.
		p.m.Warn(loc(je), fmt.Sprintf("joint type %q", typ))
		kind = model.JointFixed
	}

	pe := je.Find("parent")
	ce := je.Find("child")
	if pe == nil || ce == nil {
		return nil, p.errf(je, "joint %q missing required <parent>/<child> child", name)
	}
	parent, ok := pe.Attr("link")
	if !ok {
		return nil, p.errf(pe, "joint %q <parent> missing link attribute", name)
	}
	child, ok := ce.Attr("link")
	if !ok {
		return nil, p.errf(ce, "joint %q <child> missing link attribute", name)
	}

	origin, err := p.parseOrigin(je)
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
			v, err := xmldoc.Floats(ae.AttrDefault("xyz", "1 0 0"), 3)
			if err != nil {
				return nil, p.errf(ae, "axis: %v", err)
			}
			axis = spatial.Vec3{v[0], v[1], v[2]}
		}
		j.Axis = &axis
	}
	return j, nil
}

// parseOrigin reads an optional <origin xyz rpy> child into a canonical
// pose. Absence means the identity.
func (p *parser) parseOrigin(parent *xmldoc.Element) (spatial.Pose, error) {
	oe := parent.Find("origin")
	if oe == nil {
		return spatial.IdentityPose(), nil
	}
	xyz, err := xmldoc.Floats(oe.AttrDefault("xyz", "0 0 0"), 3)
	if err != nil {
		return spatial.Pose{}, p.errf(oe, "origin xyz: %v", err)
	}
	rpy, err := xmldoc.Floats(oe.AttrDefault("rpy", "0 0 0"), 3)
	if err != nil {
		return spatial.Pose{}, p.errf(oe, "origin rpy: %v", err)
	}
	return spatial.Pose{
		Pos: spatial.Vec3{xyz[0], xyz[1], xyz[2]},
		Rot: spatial.FromRPY(rpy[0], rpy[1], rpy[2]),
	}, nil
}

func (p *parser) requiredFloat(e *xmldoc.Element, attr string) (float64, error) {
	s, ok := e.Attr(attr)
	if !ok {
		return 0, p.errf(e, "<%s> missing required %s attribute", e.Name, attr)
	}
	v, err := xmldoc.Float(s)
	if err != nil {
		return 0, p.errf(e, "%s: %v", attr, err)
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
