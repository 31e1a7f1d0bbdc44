package sdf

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/model"
	"github.com/robometric/robotdiff/internal/spatial"
)

const simpleRobot = `<?xml version="1.0"?>
<sdf version="1.9">
  <model name="simple_robot">
    <link name="base_link">
      <inertial>
        <pose>0 0 0.1 0 0 0</pose>
        <mass>2.5</mass>
        <inertia>
          <ixx>0.1</ixx><iyy>0.2</iyy><izz>0.3</izz>
        </inertia>
      </inertial>
      <collision name="base_col">
        <pose>0 0 0 0 0 0</pose>
        <geometry><box><size>1 2 3</size></box></geometry>
      </collision>
    </link>
    <link name="arm_link">
      <pose relative_to="shoulder">0 0 0 0 0 0</pose>
      <collision name="arm_col">
        <geometry><capsule><radius>0.05</radius><length>0.4</length></capsule></geometry>
      </collision>
    </link>
    <joint name="shoulder" type="revolute">
      <parent>base_link</parent>
      <child>arm_link</child>
      <pose relative_to="base_link">0 0 0.2 0 0 1.5707963</pose>
      <axis><xyz>0 0 1</xyz></axis>
    </joint>
  </model>
</sdf>`

func TestParse_SimpleRobot(t *testing.T) {
	m, err := Parse("simple.sdf", []byte(simpleRobot))
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
	if base.Inertial.CenterOfMass != (spatial.Vec3{0, 0, 0.1}) {
		t.Errorf("center of mass = %v", base.Inertial.CenterOfMass)
	}
	if base.Collisions[0].Name != "base_col" {
		t.Errorf("collision name = %q", base.Collisions[0].Name)
	}

	arm := m.Links["arm_link"]
	if got := arm.Collisions[0].Geometry; got.Kind != model.GeomCapsule || got.Radius != 0.05 || got.Length != 0.4 {
		t.Errorf("capsule = %+v", got)
	}

	j := m.Joints["shoulder"]
	if j.Kind != model.JointRevolute {
		t.Errorf("kind = %v", j.Kind)
	}
	if math.Abs(j.Origin.Rot.Z-math.Sqrt2/2) > 1e-6 {
		t.Errorf("origin rot = %+v", j.Origin.Rot)
	}
}

func TestParse_QuaternionPose(t *testing.T) {
	doc := `<sdf version="1.9">
  <model name="r">
    <link name="a">
      <collision name="c">
        <pose rotation_format="quat_xyzw">1 2 3 0 0 0.7071068 -0.7071068</pose>
        <geometry><sphere><radius>0.1</radius></sphere></geometry>
      </collision>
    </link>
  </model>
</sdf>`
	m, err := Parse("quat.sdf", []byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rot := m.Links["a"].Collisions[0].Origin.Rot
	// Negative scalar input must canonicalize: (w=-0.707, z=0.707)
	// becomes (w=0.707, z=-0.707).
	if rot.W < 0 {
		t.Fatalf("quaternion not canonical: %+v", rot)
	}
	if math.Abs(rot.W-math.Sqrt2/2) > 1e-6 || math.Abs(rot.Z+math.Sqrt2/2) > 1e-6 {
		t.Errorf("rot = %+v", rot)
	}
}

func TestParse_JointPoseRelativeToEnforced(t *testing.T) {
	doc := `<sdf version="1.9">
  <model name="r">
    <link name="a"/>
    <link name="b">
      <pose relative_to="j">0 0 0 0 0 0</pose>
    </link>
    <joint name="j" type="fixed">
      <parent>a</parent>
      <child>b</child>
      <pose>0 0 0 0 0 0</pose>
    </joint>
  </model>
</sdf>`
	_, err := Parse("rel.sdf", []byte(doc))
	var pe *apperr.ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, `pose must have relative_to="a"`) {
		t.Fatalf("expected relative_to ParseError, got %v", err)
	}
}

func TestParse_LinkPoseMustBeIdentity(t *testing.T) {
	doc := `<sdf version="1.9">
  <model name="r">
    <link name="a"/>
    <link name="b">
      <pose relative_to="j">1 0 0 0 0 0</pose>
    </link>
    <joint name="j" type="fixed">
      <parent>a</parent>
      <child>b</child>
      <pose relative_to="a">0 0 0 0 0 0</pose>
    </joint>
  </model>
</sdf>`
	_, err := Parse("ident.sdf", []byte(doc))
	var pe *apperr.ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "pose must be the identity") {
		t.Fatalf("expected identity ParseError, got %v", err)
	}
}

func TestParse_MissingModel(t *testing.T) {
	_, err := Parse("empty.sdf", []byte(`<sdf version="1.9"></sdf>`))
	var pe *apperr.ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "<model>") {
		t.Fatalf("expected missing-model ParseError, got %v", err)
	}
}

func TestParse_UnsupportedShapeWarns(t *testing.T) {
	doc := `<sdf version="1.9">
  <model name="r">
    <link name="a">
      <collision name="c"><geometry><heightmap><uri>h.png</uri></heightmap></geometry></collision>
    </link>
  </model>
</sdf>`
	m, err := Parse("hm.sdf", []byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Warnings) != 1 || m.Warnings[0].Element != "heightmap" {
		t.Fatalf("warnings = %+v", m.Warnings)
	}
}

func TestParse_BallJointMapsToContinuous(t *testing.T) {
	doc := `<sdf version="1.9">
  <model name="r">
    <link name="a"/>
    <link name="b">
      <pose relative_to="j">0 0 0 0 0 0</pose>
    </link>
    <joint name="j" type="ball">
      <parent>a</parent>
      <child>b</child>
      <pose relative_to="a">0 0 0 0 0 0</pose>
    </joint>
  </model>
</sdf>`
	m, err := Parse("ball.sdf", []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if m.Joints["j"].Kind != model.JointContinuous {
		t.Errorf("kind = %v, want continuous", m.Joints["j"].Kind)
	}
}
