// Package usd parses Isaac-flavored USD stages into the canonical model.
//
// Only the text usda encoding is supported, composed from local sublayers.
// The stage's default prim is the robot root; links and joints are
// discovered through the isaac:physics:robotLinks and
// isaac:physics:robotJoints relationships. All authored lengths are
// multiplied by the layer's metersPerUnit so the canonical model is in
// meters.
package usd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/spatial"
)

var geometryTypes = map[string]bool{
	"Cube": true, "Sphere": true, "Cylinder": true, "Capsule": true, "Mesh": true,
}

var jointAxes = map[string]spatial.Vec3{
	"X": {1, 0, 0},
	"Y": {0, 1, 0},
	"Z": {0, 0, 1},
}

type extractor struct {
	file  string
	stage *layer
	scale float64 // metersPerUnit
	m     *model.Model
}

// Parse opens a usda stage, composes its local sublayers, and extracts
// the canonical model.
func Parse(file string, data []byte) (*model.Model, error) {
	stage, err := loadStage(file, data, map[string]bool{filepath.Clean(file): true})
	if err != nil {
		return nil, err
	}
	if stage.defaultPrim == "" {
		return nil, &apperr.ParseError{File: file, Reason: "no default prim in stage"}
	}
	root, ok := stage.index["/"+stage.defaultPrim]
	if !ok {
		return nil, &apperr.ParseError{File: file, Reason: fmt.Sprintf("default prim %q not found", stage.defaultPrim)}
	}

	e := &extractor{file: file, stage: stage, scale: stage.metersPerUnit, m: model.New(root.name)}
	if err := e.parseLinks(root); err != nil {
		return nil, err
	}
	if err := e.parseJoints(root); err != nil {
		return nil, err
	}
	if err := e.m.Validate(); err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error()}
	}
	return e.m, nil
}

// loadStage parses one layer and recursively composes its sublayers,
// weaker layers under stronger ones. visited carries the chain of open
// files for cycle detection.
func loadStage(file string, data []byte, visited map[string]bool) (*layer, error) {
	ly, err := parseLayer(data)
	if err != nil {
		return nil, &apperr.ParseError{File: file, Reason: err.Error(), Err: err}
	}
	dir := filepath.Dir(file)
	for _, ref := range ly.subLayers {
		sub := filepath.Clean(filepath.Join(dir, filepath.FromSlash(ref)))
		if visited[sub] {
			return nil, &apperr.ParseError{File: file, Reason: fmt.Sprintf("sublayer cycle through %s", sub)}
		}
		visited[sub] = true
		subData, err := os.ReadFile(sub)
		if err != nil {
			return nil, &apperr.ParseError{File: file, Reason: fmt.Sprintf("sublayer %s: %v", ref, err), Err: err}
		}
		subLayer, err := loadStage(sub, subData, visited)
		if err != nil {
			return nil, err
		}
		delete(visited, sub)
		ly.compose(subLayer)
	}
	return ly, nil
}

func (e *extractor) parseLinks(root *prim) error {
	for _, path := range root.rels["isaac:physics:robotLinks"] {
		lp, ok := e.stage.index[path]
		if !ok {
			return e.errf(root, "robot link target %s not found", path)
		}
		link := &model.Link{Name: lp.name, Source: e.src(lp)}
		link.Inertial = e.parseInertial(lp)
		var err error
		if link.Collisions, err = e.parseCollisions(lp); err != nil {
			return err
		}
		if link.Visuals, err = e.parseVisuals(lp); err != nil {
			return err
		}
		if err := e.m.AddLink(link); err != nil {
			return e.errf(lp, "%v", err)
		}
	}
	return nil
}

func (e *extractor) parseInertial(lp *prim) *model.Inertial {
	if !lp.hasAPI("PhysicsMassAPI") {
		return nil
	}
	inertial := &model.Inertial{PrincipalAxes: spatial.IdentityQuat(), Source: e.src(lp)}
	if mass, ok := lp.float("physics:mass"); ok {
		inertial.Mass = mass
	}
	if com, ok := lp.floats("physics:centerOfMass", 3); ok {
		inertial.CenterOfMass = spatial.Vec3{com[0], com[1], com[2]}.Scale(e.scale)
	}
	if q, ok := lp.floats("physics:principalAxes", 4); ok {
		inertial.PrincipalAxes = spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Canonical()
	}
	if diag, ok := lp.floats("physics:diagonalInertia", 3); ok {
		inertial.Inertia = model.Inertia{Ixx: diag[0], Iyy: diag[1], Izz: diag[2]}
	}
	return inertial
}

// parseCollisions collects geometry prims carrying PhysicsCollisionAPI
// under the link's collisions scope. Each geometry's enclosing xform
// supplies the local pose and the scale folded into the dimensions.
func (e *extractor) parseCollisions(lp *prim) ([]model.Collision, error) {
	scope := lp.child("collisions")
	if scope == nil {
		return nil, nil
	}
	var out []model.Collision
	for _, xf := range scope.children {
		for _, gp := range xf.descendants(nil) {
			if gp == xf || !gp.hasAPI("PhysicsCollisionAPI") {
				continue
			}
			geom, ok, err := e.parseGeometry(gp, e.xformScale(xf))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			origin, err := e.localPose(xf)
			if err != nil {
				return nil, err
			}
			out = append(out, model.Collision{
				Name:     xf.name,
				Origin:   origin,
				Geometry: geom,
				Source:   e.src(gp),
			})
		}
	}
	return out, nil
}

func (e *extractor) parseVisuals(lp *prim) ([]model.Visual, error) {
	scope := lp.child("visuals")
	if scope == nil {
		return nil, nil
	}
	var out []model.Visual
	for _, xf := range scope.children {
		for _, gp := range xf.descendants(nil) {
			if gp == xf || !geometryTypes[gp.typeName] {
				continue
			}
			geom, ok, err := e.parseGeometry(gp, e.xformScale(xf))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			origin, err := e.localPose(xf)
			if err != nil {
				return nil, err
			}
			out = append(out, model.Visual{
				Origin:   origin,
				Geometry: geom,
				Source:   e.src(gp),
			})
		}
	}
	return out, nil
}

// parseGeometry converts one geometry prim. USD authors unit-free sizes;
// the enclosing xform's scale and the stage's metersPerUnit both fold
// into the canonical dimensions. Cylinder and capsule dimensions depend
// on the authored axis token.
func (e *extractor) parseGeometry(gp *prim, scale spatial.Vec3) (model.Geometry, bool, error) {
	geom := model.Geometry{Source: e.src(gp)}
	switch gp.typeName {
	case "Cube":
		size, ok := gp.float("size")
		if !ok {
			size = 2 // USD schema fallback
		}
		geom.Kind = model.GeomBox
		geom.Size = scale.Scale(size * e.scale)
	case "Sphere":
		r, ok := gp.float("radius")
		if !ok {
			r = 1
		}
		geom.Kind = model.GeomSphere
		geom.Radius = r * maxComponent(scale) * e.scale
	case "Cylinder", "Capsule":
		if gp.typeName == "Capsule" {
			geom.Kind = model.GeomCapsule
		} else {
			geom.Kind = model.GeomCylinder
		}
		r, ok := gp.float("radius")
		if !ok {
			r = 1
		}
		h, ok := gp.float("height")
		if !ok {
			h = 2
		}
		axis, _ := gp.token("axis")
		switch axis {
		case "X":
			r *= maxOf(scale[1], scale[2])
			h *= scale[0]
		case "Y":
			r *= maxOf(scale[0], scale[2])
			h *= scale[1]
		default: // Z is the schema default
			r *= maxOf(scale[0], scale[1])
			h *= scale[2]
		}
		geom.Radius = r * e.scale
		geom.Length = h * e.scale
	case "Mesh":
		geom.Kind = model.GeomMesh
		geom.MeshURI = fmt.Sprintf("usd:%s/%s", parentName(gp.path), gp.name)
		geom.MeshScale = scale
	default:
		e.m.Warn(gp.path, gp.typeName)
		return geom, false, nil
	}
	if err := geom.Validate(); err != nil {
		return geom, false, e.errf(gp, "%v", err)
	}
	return geom, true, nil
}

// localPose reads the prim's xformOp chain: either a translate plus
// orient pair or a full matrix4d transform.
func (e *extractor) localPose(xf *prim) (spatial.Pose, error) {
	if mat, ok := xf.floats("xformOp:transform", 16); ok {
		var rot [3][3]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				// usda matrices are row-major with row vectors, so the
				// rotation part transposes into column convention.
				rot[j][i] = mat[i*4+j]
			}
		}
		return spatial.Pose{
			Pos: spatial.Vec3{mat[12], mat[13], mat[14]}.Scale(e.scale),
			Rot: spatial.FromMatrix(rot),
		}, nil
	}
	pose := spatial.IdentityPose()
	if t, ok := xf.floats("xformOp:translate", 3); ok {
		pose.Pos = spatial.Vec3{t[0], t[1], t[2]}.Scale(e.scale)
	}
	if q, ok := xf.floats("xformOp:orient", 4); ok {
		pose.Rot = spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Canonical()
	}
	return pose, nil
}

func (e *extractor) xformScale(xf *prim) spatial.Vec3 {
	if s, ok := xf.floats("xformOp:scale", 3); ok {
		return spatial.Vec3{s[0], s[1], s[2]}
	}
	return spatial.Vec3{1, 1, 1}
}

func (e *extractor) parseJoints(root *prim) error {
	for _, path := range root.rels["isaac:physics:robotJoints"] {
		jp, ok := e.stage.index[path]
		if !ok {
			return e.errf(root, "robot joint target %s not found", path)
		}
		joint, err := e.parseJoint(jp)
		if err != nil {
			return err
		}
		if err := e.m.AddJoint(joint); err != nil {
			return e.errf(jp, "%v", err)
		}
	}
	return nil
}

func (e *extractor) parseJoint(jp *prim) (*model.Joint, error) {
	parent, err := e.relTargetName(jp, "physics:body0")
	if err != nil {
		return nil, err
	}
	child, err := e.relTargetName(jp, "physics:body1")
	if err != nil {
		return nil, err
	}

	var kind model.JointKind
	switch jp.typeName {
	case "PhysicsRevoluteJoint":
		// Authored limits bound the hinge into a revolute joint; an
		// unbounded one is continuous.
		_, hasLower := jp.float("physics:lowerLimit")
		_, hasUpper := jp.float("physics:upperLimit")
		if hasLower && hasUpper {
			kind = model.JointRevolute
		} else {
			kind = model.JointContinuous
		}
	case "PhysicsPrismaticJoint":
		kind = model.JointPrismatic
	case "PhysicsFixedJoint":
		kind = model.JointFixed
	default:
		e.m.Warn(jp.path, fmt.Sprintf("joint type %q", jp.typeName))
		kind = model.JointFixed
	}

	origin := spatial.IdentityPose()
	if pos, ok := jp.floats("physics:localPos0", 3); ok {
		origin.Pos = spatial.Vec3{pos[0], pos[1], pos[2]}.Scale(e.scale)
	}
	if q, ok := jp.floats("physics:localRot0", 4); ok {
		origin.Rot = spatial.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Canonical()
	}

	j := &model.Joint{
		Name:   jp.name,
		Kind:   kind,
		Parent: parent,
		Child:  child,
		Origin: origin,
		Source: e.src(jp),
	}
	if kind.HasAxis() {
		axis := jointAxes["X"]
		if tok, ok := jp.token("physics:axis"); ok {
			if a, known := jointAxes[tok]; known {
				axis = a
			} else {
				return nil, e.errf(jp, "unknown joint axis %q", tok)
			}
		}
		j.Axis = &axis
	}
	return j, nil
}

func (e *extractor) relTargetName(jp *prim, rel string) (string, error) {
	targets := jp.rels[rel]
	if len(targets) == 0 {
		return "", e.errf(jp, "joint missing %s relationship", rel)
	}
	tp, ok := e.stage.index[targets[0]]
	if !ok {
		return "", e.errf(jp, "%s target %s not found", rel, targets[0])
	}
	return tp.name, nil
}

func parentName(path string) string {
	return filepath.Base(filepath.Dir(filepath.FromSlash(path)))
}

func maxComponent(v spatial.Vec3) float64 {
	return maxOf(v[0], maxOf(v[1], v[2]))
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (e *extractor) src(p *prim) model.Source {
	return model.Source{File: e.file, Path: p.path}
}

func (e *extractor) errf(p *prim, format string, args ...any) error {
	return &apperr.ParseError{File: e.file, Location: p.path, Reason: fmt.Sprintf(format, args...)}
}
