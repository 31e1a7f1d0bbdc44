// Package mjcf parses MuJoCo MJCF documents into the canonical model.
//
// MJCF differs from the other XML dialects in almost every convention the
// canonical model fixes: the kinematic tree is implicit in nested <body>
// elements, boxes are half-extent, cylinders and capsules carry
// half-lengths, euler angles default to degrees, and attribute defaults
// cascade through <default> class inheritance. All of that is resolved
// here so the emitted model is directly comparable with the others.
package mjcf

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/robometric/robotdiff/internal/adapter/xmldoc"
	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/spatial"
)

// class holds the resolved attribute defaults of one <default> class.
type class struct {
	parent string
	joint  map[string]string
	geom   map[string]string
}

type parser struct {
	file       string
	m          *model.Model
	classes    map[string]*class
	meshes     map[string]model.Geometry
	degrees    bool
	hasClasses bool
}

// Parse converts an MJCF document into a canonical model.
func Parse(file string, data []byte) (*model.Model, error) {
	root, err := xmldoc.Parse(data)
	if err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error(), Err: err}
	}
	if root.Name != "mujoco" {
		return nil, &apperr.ParseError{File: file, Location: loc(root), Reason: fmt.Sprintf("expected <mujoco> document element, got <%s>", root.Name)}
	}

	p := &parser{
		file:    file,
		m:       model.New(root.AttrDefault("model", "robot")),
		classes: make(map[string]*class),
		meshes:  make(map[string]model.Geometry),
		degrees: true, // MJCF compiler default
	}
	if ce := root.Find("compiler"); ce != nil {
		p.degrees = ce.AttrDefault("angle", "degree") == "degree"
	}

	if de := root.Find("default"); de != nil {
		for _, child := range de.FindAll("default") {
			p.parseDefaults(child, "")
		}
		p.hasClasses = len(p.classes) > 0
	}
	if err := p.parseMeshAssets(root); err != nil {
		return nil, err
	}

	wb := root.Find("worldbody")
	if wb == nil {
		return nil, &apperr.ParseError{File: file, Location: loc(root), Reason: "missing required <worldbody> element"}
	}
	if err := p.parseBodies(wb, ""); err != nil {
		return nil, err
	}

	if err := p.m.Validate(); err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error()}
	}
	return p.m, nil
}

func (p *parser) parseDefaults(de *xmldoc.Element, parent string) {
	name := de.AttrDefault("class", "main")
	c := &class{parent: parent}
	if je := de.Find("joint"); je != nil {
		c.joint = copyAttrs(je.Attrs)
	}
	if ge := de.Find("geom"); ge != nil {
		c.geom = copyAttrs(ge.Attrs)
	}
	p.classes[name] = c
	for _, child := range de.FindAll("default") {
		p.parseDefaults(child, name)
	}
}

// classDefaults flattens the inheritance chain for one element type, with
// child classes overriding their ancestors.
func (p *parser) classDefaults(name, elemType string) map[string]string {
	c, ok := p.classes[name]
	if name == "" || !ok {
		return map[string]string{}
	}
	defaults := p.classDefaults(c.parent, elemType)
	var own map[string]string
	if elemType == "joint" {
		own = c.joint
	} else {
		own = c.geom
	}
	for k, v := range own {
		defaults[k] = v
	}
	return defaults
}

// isDescendant reports whether class name inherits from (or is) target.
func (p *parser) isDescendant(name, target string) bool {
	for cur := name; cur != ""; {
		if cur == target {
			return true
		}
		c, ok := p.classes[cur]
		if !ok {
			return false
		}
		cur = c.parent
	}
	return false
}

func (p *parser) parseMeshAssets(root *xmldoc.Element) error {
	ae := root.Find("asset")
	if ae == nil {
		return nil
	}
	meshdir := ""
	if ce := root.Find("compiler"); ce != nil {
		meshdir = ce.AttrDefault("meshdir", "")
	}
	for _, me := range ae.FindAll("mesh") {
		fname, ok := me.Attr("file")
		if !ok {
			continue
		}
		name := me.AttrDefault("name", "")
		if name == "" {
			name = strings.TrimSuffix(path.Base(fname), path.Ext(fname))
		}
		if meshdir != "" {
			fname = path.Join(meshdir, fname)
		}
		scale, err := xmldoc.Floats(me.AttrDefault("scale", "1 1 1"), 3)
		if err != nil {
			return p.errf(me, "mesh scale: %v", err)
		}
		p.meshes[name] = model.Geometry{
			Kind:      model.GeomMesh,
			MeshURI:   fname,
			MeshScale: spatial.Vec3{scale[0], scale[1], scale[2]},
			Source:    p.src(me),
		}
	}
	return nil
}

// parseBodies walks the nested body hierarchy, creating one link per named
// body and one joint per parent/child pair.
func (p *parser) parseBodies(parent *xmldoc.Element, parentName string) error {
	for _, be := range parent.FindAll("body") {
		name := be.AttrDefault("name", "")
		if name == "" {
			continue
		}
		link, err := p.parseLink(be, name)
		if err != nil {
			return err
		}
		if err := p.m.AddLink(link); err != nil {
			return p.errf(be, "%v", err)
		}
		if parentName != "" {
			joint, err := p.createJoint(be, parentName, name)
			if err != nil {
				return err
			}
			if err := p.m.AddJoint(joint); err != nil {
				return p.errf(be, "%v", err)
			}
		}
		if err := p.parseBodies(be, name); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseLink(be *xmldoc.Element, name string) (*model.Link, error) {
	link := &model.Link{Name: name, Source: p.src(be)}

	var err error
	if link.Inertial, err = p.parseInertial(be); err != nil {
		return nil, err
	}
	for _, ge := range be.FindAll("geom") {
		target, ok := p.geomTarget(ge)
		if !ok {
			continue
		}
		defaults := p.classDefaults(ge.AttrDefault("class", ""), "geom")
		geom, supported, err := p.parseGeometry(ge, defaults)
		if err != nil {
			return nil, err
		}
		if !supported {
			continue
		}
		origin, err := p.parsePose(ge, defaults)
		if err != nil {
			return nil, err
		}
		switch target {
		case "collision":
			link.Collisions = append(link.Collisions, model.Collision{
				Name:     ge.AttrDefault("name", ""),
				Origin:   origin,
				Geometry: geom,
				Source:   p.src(ge),
			})
		case "visual":
			link.Visuals = append(link.Visuals, model.Visual{
				Origin:   origin,
				Geometry: geom,
				Source:   p.src(ge),
			})
		}
	}
	return link, nil
}

// geomTarget decides whether a geom belongs to the collision or visual
// set. With class-based splitting (the convention the original models in
// this format follow), a geom counts for the class it inherits from.
// Documents that declare no classes fall back to MJCF's physical default:
// every geom is a collision geom.
func (p *parser) geomTarget(ge *xmldoc.Element) (string, bool) {
	cls := ge.AttrDefault("class", "")
	if cls == "" {
		if p.hasClasses {
			return "", false
		}
		return "collision", true
	}
	if p.isDescendant(cls, "collision") {
		return "collision", true
	}
	if p.isDescendant(cls, "visual") {
		return "visual", true
	}
	return "", false
}

func (p *parser) parseInertial(be *xmldoc.Element) (*model.Inertial, error) {
	ie := be.Find("inertial")
	if ie == nil {
		return nil, nil
	}
	origin, err := p.parsePose(ie, nil)
	if err != nil {
		return nil, err
	}
	inertial := &model.Inertial{
		CenterOfMass:  origin.Pos,
		PrincipalAxes: origin.Rot,
		Source:        p.src(ie),
	}
	if inertial.Mass, err = xmldoc.Float(ie.AttrDefault("mass", "0")); err != nil {
		return nil, p.errf(ie, "mass: %v", err)
	}
	if inertial.Mass < 0 {
		return nil, p.errf(ie, "negative mass %v", inertial.Mass)
	}
	if diag, ok := ie.Attr("diaginertia"); ok {
		v, err := xmldoc.Floats(diag, 3)
		if err != nil {
			return nil, p.errf(ie, "diaginertia: %v", err)
		}
		inertial.Inertia = model.Inertia{Ixx: v[0], Iyy: v[1], Izz: v[2]}
	} else if full, ok := ie.Attr("fullinertia"); ok {
		// MJCF order: ixx iyy izz ixy ixz iyz.
		v, err := xmldoc.Floats(full, 6)
		if err != nil {
			return nil, p.errf(ie, "fullinertia: %v", err)
		}
		inertial.Inertia = model.Inertia{Ixx: v[0], Iyy: v[1], Izz: v[2], Ixy: v[3], Ixz: v[4], Iyz: v[5]}
	}
	return inertial, nil
}

func (p *parser) parseGeometry(ge *xmldoc.Element, defaults map[string]string) (model.Geometry, bool, error) {
	if meshName, ok := ge.Attr("mesh"); ok {
		geom, found := p.meshes[meshName]
		if !found {
			p.m.Warn(loc(ge), fmt.Sprintf("mesh asset %q", meshName))
			return model.Geometry{}, false, nil
		}
		return geom, true, nil
	}

	typ := attrOr(ge, defaults, "type", "sphere")
	sizeStr := attrOr(ge, defaults, "size", "")
	geom := model.Geometry{Source: p.src(ge)}

	switch typ {
	case "box":
		v, err := xmldoc.Floats(sizeStr, 3)
		if err != nil {
			return geom, false, p.errf(ge, "box size: %v", err)
		}
		geom.Kind = model.GeomBox
		geom.Size = spatial.FullExtents(spatial.Vec3{v[0], v[1], v[2]})
	case "sphere":
		v, err := xmldoc.Floats(sizeStr, 1)
		if err != nil {
			return geom, false, p.errf(ge, "sphere size: %v", err)
		}
		geom.Kind = model.GeomSphere
		geom.Radius = v[0]
	case "cylinder", "capsule":
		v, err := xmldoc.Floats(sizeStr, 2)
		if err != nil {
			return geom, false, p.errf(ge, "%s size: %v", typ, err)
		}
		if typ == "capsule" {
			geom.Kind = model.GeomCapsule
		} else {
			geom.Kind = model.GeomCylinder
		}
		geom.Radius = v[0]
		geom.Length = 2 * v[1] // half-length convention
	default:
		p.m.Warn(loc(ge), fmt.Sprintf("geom type %q", typ))
		return geom, false, nil
	}

	if err := geom.Validate(); err != nil {
		return geom, false, p.errf(ge, "%v", err)
	}
	return geom, true, nil
}

// createJoint derives the canonical joint for a body: an explicit
// <freejoint> or <joint>, or a synthetic fixed joint when the body
// declares none. The joint origin is the body's pose in its parent frame.
func (p *parser) createJoint(be *xmldoc.Element, parentName, childName string) (*model.Joint, error) {
	origin, err := p.parsePose(be, nil)
	if err != nil {
		return nil, err
	}

	if fe := be.Find("freejoint"); fe != nil {
		return &model.Joint{
			Name:   fe.AttrDefault("name", childName+"_freejoint"),
			Kind:   model.JointFloating,
			Parent: parentName,
			Child:  childName,
			Origin: origin,
			Source: p.src(fe),
		}, nil
	}

	joints := be.FindAll("joint")
	if len(joints) == 0 {
		return &model.Joint{
			Name:   childName + "_fixed",
			Kind:   model.JointFixed,
			Parent: parentName,
			Child:  childName,
			Origin: origin,
			Source: p.src(be),
		}, nil
	}
	if len(joints) > 1 {
		p.m.Warn(loc(joints[1]), "multiple joints per body")
	}
	je := joints[0]

	defaults := p.classDefaults(je.AttrDefault("class", ""), "joint")
	typ := attrOr(je, defaults, "type", "hinge")

	var kind model.JointKind
	switch typ {
	case "hinge":
		// An unbounded hinge is a continuous joint; an authored range
		// bounds it into a revolute one.
		if _, ok := je.Attr("range"); ok {
			kind = model.JointRevolute
		} else if _, ok := defaults["range"]; ok {
			kind = model.JointRevolute
		} else {
			kind = model.JointContinuous
		}
	case "slide":
		kind = model.JointPrismatic
	case "ball":
		kind = model.JointContinuous
	case "free":
		kind = model.JointFloating
	default:
		p.m.Warn(loc(je), fmt.Sprintf("joint type %q", typ))
		kind = model.JointFixed
	}

	j := &model.Joint{
		Name:   je.AttrDefault("name", childName+"_joint"),
		Kind:   kind,
		Parent: parentName,
		Child:  childName,
		Origin: origin,
		Source: p.src(je),
	}
	if kind.HasAxis() {
		v, err := xmldoc.Floats(attrOr(je, defaults, "axis", "0 0 1"), 3)
		if err != nil {
			return nil, p.errf(je, "axis: %v", err)
		}
		axis := spatial.Vec3{v[0], v[1], v[2]}
		j.Axis = &axis
	}
	return j, nil
}

// parsePose reads pos plus quat or euler attributes. Euler angles are
// converted from degrees unless the compiler declares radians.
func (p *parser) parsePose(e *xmldoc.Element, defaults map[string]string) (spatial.Pose, error) {
	pos, err := xmldoc.Floats(attrOr(e, defaults, "pos", "0 0 0"), 3)
	if err != nil {
		return spatial.Pose{}, p.errf(e, "pos: %v", err)
	}
	pose := spatial.Pose{Pos: spatial.Vec3{pos[0], pos[1], pos[2]}, Rot: spatial.IdentityQuat()}

	if qs := attrOr(e, defaults, "quat", ""); qs != "" {
		v, err := xmldoc.Floats(qs, 4)
		if err != nil {
			return spatial.Pose{}, p.errf(e, "quat: %v", err)
		}
		// MJCF quaternions are (w, x, y, z).
		pose.Rot = spatial.Quat{W: v[0], X: v[1], Y: v[2], Z: v[3]}.Canonical()
	} else if es := attrOr(e, defaults, "euler", ""); es != "" {
		v, err := xmldoc.Floats(es, 3)
		if err != nil {
			return spatial.Pose{}, p.errf(e, "euler: %v", err)
		}
		if p.degrees {
			for i := range v {
				v[i] *= math.Pi / 180
			}
		}
		pose.Rot = spatial.FromRPY(v[0], v[1], v[2])
	}
	return pose, nil
}

func attrOr(e *xmldoc.Element, defaults map[string]string, name, fallback string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	if v, ok := defaults[name]; ok {
		return v
	}
	return fallback
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
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
