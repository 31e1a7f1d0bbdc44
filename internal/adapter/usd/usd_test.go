package usd

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/model"
)

const simpleRobot = `#usda 1.0
(
    defaultPrim = "simple_robot"
    metersPerUnit = 1
    upAxis = "Z"
)

def Xform "simple_robot" (
    prepend apiSchemas = ["PhysicsArticulationRootAPI"]
)
{
    rel isaac:physics:robotLinks = [
        </simple_robot/base_link>,
        </simple_robot/arm_link>,
    ]
    rel isaac:physics:robotJoints = [
        </simple_robot/joints/shoulder>,
    ]

    def Xform "base_link" (
        prepend apiSchemas = ["PhysicsRigidBodyAPI", "PhysicsMassAPI"]
    )
    {
        float physics:mass = 2.5
        point3f physics:centerOfMass = (0, 0, 0.1)
        quatf physics:principalAxes = (1, 0, 0, 0)
        float3 physics:diagonalInertia = (0.1, 0.2, 0.3)

        def Scope "collisions"
        {
            def Xform "box_col"
            {
                double3 xformOp:translate = (0, 0, 0)
                quatf xformOp:orient = (1, 0, 0, 0)
                float3 xformOp:scale = (1, 2, 3)
                uniform token[] xformOpOrder = ["xformOp:translate", "xformOp:orient", "xformOp:scale"]

                def Cube "geom" (
                    prepend apiSchemas = ["PhysicsCollisionAPI"]
                )
                {
                    double size = 1
                }
            }
        }
    }

    def Xform "arm_link"
    {
        def Scope "collisions"
        {
            def Xform "cyl_col"
            {
                float3 xformOp:scale = (1, 1, 1)

                def Cylinder "geom" (
                    prepend apiSchemas = ["PhysicsCollisionAPI"]
                )
                {
                    double radius = 0.05
                    double height = 0.4
                    uniform token axis = "Z"
                }
            }
        }

        def Scope "visuals"
        {
            def Xform "arm_vis"
            {
                float3 xformOp:scale = (1, 1, 2)

                def Mesh "arm"
                {
                }
            }
        }
    }

    def Scope "joints"
    {
        def PhysicsRevoluteJoint "shoulder"
        {
            rel physics:body0 = </simple_robot/base_link>
            rel physics:body1 = </simple_robot/arm_link>
            uniform token physics:axis = "Z"
            point3f physics:localPos0 = (0, 0, 0.2)
            quatf physics:localRot0 = (0.7071068, 0, 0, 0.7071068)
            float physics:lowerLimit = -90
            float physics:upperLimit = 90
        }
    }
}
`

func TestParse_SimpleRobot(t *testing.T) {
	m, err := Parse("simple.usda", []byte(simpleRobot))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "simple_robot" {
		t.Errorf("name = %q", m.Name)
	}
	if len(m.Links) != 2 || len(m.Joints) != 1 {
		t.Fatalf("links = %d, joints = %d", len(m.Links), len(m.Joints))
	}

	base := m.Links["base_link"]
	if base.Inertial == nil || base.Inertial.Mass != 2.5 {
		t.Fatalf("inertial = %+v", base.Inertial)
	}
	if base.Inertial.CenterOfMass != [3]float64{0, 0, 0.1} {
		t.Errorf("center of mass = %v", base.Inertial.CenterOfMass)
	}
	if base.Inertial.Inertia.Iyy != 0.2 {
		t.Errorf("iyy = %v", base.Inertial.Inertia.Iyy)
	}
	// Cube edge 1 scaled per-axis by (1, 2, 3).
	if got := base.Collisions[0]; got.Name != "box_col" || got.Geometry.Size != [3]float64{1, 2, 3} {
		t.Errorf("collision = %+v", got)
	}

	arm := m.Links["arm_link"]
	if got := arm.Collisions[0].Geometry; got.Kind != model.GeomCylinder || got.Radius != 0.05 || got.Length != 0.4 {
		t.Errorf("cylinder = %+v", got)
	}
	if len(arm.Visuals) != 1 || arm.Visuals[0].Geometry.MeshURI != "usd:arm_vis/arm" {
		t.Errorf("visuals = %+v", arm.Visuals)
	}
	if arm.Visuals[0].Geometry.MeshScale != [3]float64{1, 1, 2} {
		t.Errorf("mesh scale = %v", arm.Visuals[0].Geometry.MeshScale)
	}

	j := m.Joints["shoulder"]
	// Authored limits make the hinge revolute.
	if j.Kind != model.JointRevolute || j.Parent != "base_link" || j.Child != "arm_link" {
		t.Errorf("joint = %+v", j)
	}
	if j.Axis == nil || *j.Axis != [3]float64{0, 0, 1} {
		t.Errorf("axis = %v", j.Axis)
	}
	if j.Origin.Pos != [3]float64{0, 0, 0.2} {
		t.Errorf("origin pos = %v", j.Origin.Pos)
	}
	if math.Abs(j.Origin.Rot.W-math.Sqrt2/2) > 1e-6 || math.Abs(j.Origin.Rot.Z-math.Sqrt2/2) > 1e-6 {
		t.Errorf("origin rot = %+v", j.Origin.Rot)
	}
	if src := m.Links["base_link"].Source; src.Path != "/simple_robot/base_link" {
		t.Errorf("source = %+v", src)
	}
}

const twoLinkTemplate = `#usda 1.0
(
    defaultPrim = "r"
    metersPerUnit = %METERS%
)

def Xform "r"
{
    rel isaac:physics:robotLinks = [</r/a>, </r/b>]
    rel isaac:physics:robotJoints = [</r/j>]

    def Xform "a"
    {
        def Scope "collisions"
        {
            def Xform "c"
            {
                float3 xformOp:scale = (2, 1, 1)

                def Cylinder "geom" (
                    prepend apiSchemas = ["PhysicsCollisionAPI"]
                )
                {
                    double radius = 0.5
                    double height = 3
                    uniform token axis = "X"
                }
            }
        }
    }

    def Xform "b"
    {
    }

    def %JOINT% "j"
    {
        rel physics:body0 = </r/a>
        rel physics:body1 = </r/b>
        uniform token physics:axis = "Z"
        point3f physics:localPos0 = (1, 0, 0)
    }
}
`

func twoLink(meters, jointType string) []byte {
	s := strings.ReplaceAll(twoLinkTemplate, "%METERS%", meters)
	return []byte(strings.ReplaceAll(s, "%JOINT%", jointType))
}

func TestParse_RevoluteWithoutLimitsIsContinuous(t *testing.T) {
	m, err := Parse("r.usda", twoLink("1", "PhysicsRevoluteJoint"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Joints["j"].Kind != model.JointContinuous {
		t.Errorf("kind = %v, want continuous", m.Joints["j"].Kind)
	}
}

func TestParse_CylinderAxisXScaleFolding(t *testing.T) {
	m, err := Parse("r.usda", twoLink("1", "PhysicsFixedJoint"))
	if err != nil {
		t.Fatal(err)
	}
	g := m.Links["a"].Collisions[0].Geometry
	// Axis X: height follows scale x, radius the max of y and z scales.
	if g.Length != 6 || g.Radius != 0.5 {
		t.Errorf("cylinder = %+v", g)
	}
}

func TestParse_MetersPerUnitScaling(t *testing.T) {
	m, err := Parse("cm.usda", twoLink("0.01", "PhysicsFixedJoint"))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Joints["j"].Origin.Pos; math.Abs(got[0]-0.01) > 1e-12 {
		t.Errorf("joint pos = %v, want x=0.01", got)
	}
	g := m.Links["a"].Collisions[0].Geometry
	if math.Abs(g.Length-0.06) > 1e-12 || math.Abs(g.Radius-0.005) > 1e-12 {
		t.Errorf("cylinder = %+v", g)
	}
}

func TestParse_NoDefaultPrim(t *testing.T) {
	doc := `#usda 1.0

def Xform "r"
{
}
`
	_, err := Parse("nodef.usda", []byte(doc))
	var pe *apperr.ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "default prim") {
		t.Fatalf("expected default-prim ParseError, got %v", err)
	}
}

func TestParse_UnknownGeometryWarns(t *testing.T) {
	doc := `#usda 1.0
(
    defaultPrim = "r"
)

def Xform "r"
{
    rel isaac:physics:robotLinks = [</r/a>]

    def Xform "a"
    {
        def Scope "collisions"
        {
            def Xform "c"
            {
                def Cone "geom" (
                    prepend apiSchemas = ["PhysicsCollisionAPI"]
                )
                {
                    double radius = 1
                }
            }
        }
    }
}
`
	m, err := Parse("cone.usda", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Warnings) != 1 || m.Warnings[0].Element != "Cone" {
		t.Fatalf("warnings = %+v", m.Warnings)
	}
}

func TestParse_SublayerComposition(t *testing.T) {
	dir := t.TempDir()
	base := `#usda 1.0
(
    defaultPrim = "r"
)

def Xform "r"
{
    rel isaac:physics:robotLinks = [</r/a>]

    def Xform "a" (
        prepend apiSchemas = ["PhysicsMassAPI"]
    )
    {
        float physics:mass = 1.5
    }
}
`
	top := `#usda 1.0
(
    subLayers = [
        @./base.usda@
    ]
)

over "r"
{
    over "a"
    {
        float physics:mass = 4.0
    }
}
`
	if err := os.WriteFile(filepath.Join(dir, "base.usda"), []byte(base), 0o644); err != nil {
		t.Fatal(err)
	}
	topPath := filepath.Join(dir, "top.usda")
	if err := os.WriteFile(topPath, []byte(top), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(topPath)
	if err != nil {
		t.Fatal(err)
	}
	m, err := Parse(topPath, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The root layer's opinion wins over the sublayer's.
	if m.Links["a"].Inertial == nil || m.Links["a"].Inertial.Mass != 4.0 {
		t.Errorf("inertial = %+v", m.Links["a"].Inertial)
	}
}

func TestParse_SublayerCycle(t *testing.T) {
	dir := t.TempDir()
	a := `#usda 1.0
(
    defaultPrim = "r"
    subLayers = [@./b.usda@]
)

def Xform "r"
{
}
`
	b := `#usda 1.0
(
    subLayers = [@./a.usda@]
)
`
	aPath := filepath.Join(dir, "a.usda")
	if err := os.WriteFile(aPath, []byte(a), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.usda"), []byte(b), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Parse(aPath, []byte(a))
	var pe *apperr.ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "cycle") {
		t.Fatalf("expected cycle ParseError, got %v", err)
	}
}

func TestParse_MissingHeader(t *testing.T) {
	_, err := Parse("bad.usda", []byte(`def Xform "r" {}`))
	var pe *apperr.ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "#usda") {
		t.Fatalf("expected header ParseError, got %v", err)
	}
}
