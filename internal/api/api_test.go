package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/robometric/robotdiff/internal/compare"
	"github.com/robometric/robotdiff/internal/diff"
	"github.com/robometric/robotdiff/internal/source"
)

const armURDF = `<robot name="arm">
  <link name="base">
    <inertial>
      <origin xyz="0 0 0.05" rpy="0 0 0"/>
      <mass value="2.5"/>
      <inertia ixx="0.1" iyy="0.1" izz="0.1" ixy="0" ixz="0" iyz="0"/>
    </inertial>
    <collision name="base_col">
      <origin xyz="0 0 0" rpy="0 0 0"/>
      <geometry><box size="0.2 0.2 0.1"/></geometry>
    </collision>
  </link>
  <link name="arm">
    <inertial>
      <mass value="%MASS%"/>
      <inertia ixx="0.01" iyy="0.01" izz="0.01" ixy="0" ixz="0" iyz="0"/>
    </inertial>
  </link>
  <joint name="shoulder" type="revolute">
    <parent link="base"/>
    <child link="arm"/>
    <origin xyz="0 0 0.1" rpy="0 0 0"/>
    <axis xyz="0 0 1"/>
    <limit lower="-1.57" upper="1.57"/>
  </joint>
</robot>`

// testEnv sets up a temp model directory with two URDF files and a router.
// authToken empty means disabled auth.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()

	modelDir := t.TempDir()
	writeModel := func(name, mass string) {
		data := bytes.ReplaceAll([]byte(armURDF), []byte("%MASS%"), []byte(mass))
		if err := os.WriteFile(filepath.Join(modelDir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeModel("a.urdf", "1.0")
	writeModel("b.urdf", "1.0")
	writeModel("heavy.urdf", "4.5")
	if err := os.WriteFile(filepath.Join(modelDir, "broken.urdf"), []byte("<robot"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir, err := source.NewDir(modelDir)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	svc := NewService(dir, diff.DefaultOptions())
	return NewRouter(svc, authToken != "", authToken, nil)
}

func postCompare(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/compare", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCompareEquivalent(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf", PathB: "b.urdf"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res compare.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Report.Equivalent() {
		t.Errorf("expected equivalent report, got %d entries", len(res.Report.Entries))
	}
	if res.ChecksumA != res.ChecksumB {
		t.Errorf("identical content should share a checksum")
	}
}

func TestCompareFindsDifference(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf", PathB: "heavy.urdf"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res compare.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Report.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Report.Entries))
	}
	e := res.Report.Entries[0]
	if e.FieldPath != "inertial.mass" || e.EntityID != "arm" {
		t.Errorf("unexpected entry %q on %q", e.FieldPath, e.EntityID)
	}
}

func TestCompareToleranceOverride(t *testing.T) {
	router := testEnv(t, "")

	tol := 10.0
	w := postCompare(t, router, CompareRequest{
		PathA:   "a.urdf",
		PathB:   "heavy.urdf",
		Options: &OptionsDTO{ToleranceLinear: &tol},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res compare.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Report.Equivalent() {
		t.Errorf("mass delta 3.5 should vanish under tolerance 10")
	}
}

func TestCompareMissingPaths(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCompareUnknownFile(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf", PathB: "nope.urdf"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}
}

func TestComparePathEscapeRejected(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "../outside.urdf", PathB: "b.urdf"})
	if w.Code == http.StatusOK {
		t.Errorf("path escaping the model root must not succeed")
	}
}

func TestCompareParseError(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf", PathB: "broken.urdf"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
}

func TestCompareBadFormatOverride(t *testing.T) {
	router := testEnv(t, "")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf", PathB: "b.urdf", FormatB: "collada"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	router := testEnv(t, "s3cret")

	w := postCompare(t, router, CompareRequest{PathA: "a.urdf", PathB: "b.urdf"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	raw, _ := json.Marshal(CompareRequest{PathA: "a.urdf", PathB: "b.urdf"})
	req := httptest.NewRequest(http.MethodPost, "/compare", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorized status = %d, want 200", rec.Code)
	}
}

func TestFormats(t *testing.T) {
	router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/formats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var res FormatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Formats) != 4 {
		t.Errorf("formats = %v, want 4 entries", res.Formats)
	}
}
