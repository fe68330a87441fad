package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFile)
	writeFile(t, path, "name: intake\npaths:\n  surveys: forms\ndefaults:\n  ui: repl\n")

	p, err := LoadProjectFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "intake" || p.SurveysDir() != "forms" || p.ScenariosDir() != "scenarios" {
		t.Errorf("project = %+v", p)
	}
	if p.Defaults.UI != "repl" {
		t.Errorf("defaults.ui = %q", p.Defaults.UI)
	}
}

func TestLoadProjectFile_RequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFile)
	writeFile(t, path, "paths:\n  surveys: forms\n")
	if _, err := LoadProjectFile(path); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestDiscoverProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "name: intake\n")
	nested := filepath.Join(root, "surveys", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := DiscoverProject(nested)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Name != "intake" {
		t.Fatalf("DiscoverProject = %+v", p)
	}
}

func TestDiscoverProject_None(t *testing.T) {
	p, err := DiscoverProject(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		// A wizard.yaml above the temp dir would be unusual but not wrong.
		t.Logf("found project %q above temp dir", p.Name)
	}
}

func TestResolveSurveyRef(t *testing.T) {
	root := t.TempDir()
	flat := filepath.Join(root, "surveys", "wellness.yaml")
	grouped := filepath.Join(root, "surveys", "intake", "intake.yaml")
	writeFile(t, flat, "x")
	writeFile(t, grouped, "x")
	p := FallbackProject(root)

	tests := []struct {
		ref  string
		want string
	}{
		{"wellness", flat},
		{"wellness.yaml", flat},
		{"intake", grouped},
		{flat, flat},
	}
	for _, tt := range tests {
		got, err := p.ResolveSurveyRef(tt.ref)
		if err != nil {
			t.Errorf("ResolveSurveyRef(%q): %v", tt.ref, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveSurveyRef(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}

	if _, err := p.ResolveSurveyRef("missing"); err == nil {
		t.Error("expected error for missing survey")
	}
}

func TestScenarioDirFor(t *testing.T) {
	var none *Project
	if got := none.ScenarioDirFor("/x/surveys/wellness.yaml"); got != filepath.Join("/x/surveys", "scenarios", "wellness") {
		t.Errorf("without project = %q", got)
	}
	p := &Project{Name: "p", Root: "/repo"}
	if got := p.ScenarioDirFor("/x/surveys/wellness.yaml"); got != filepath.Join("/repo", "scenarios", "wellness") {
		t.Errorf("with project = %q", got)
	}
}

func TestOpenProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "name: intake\n")
	p, err := OpenProject(root)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "intake" || p.Fallback {
		t.Errorf("OpenProject with manifest = %+v", p)
	}
}

func TestOpenProject_Fallback(t *testing.T) {
	dir := t.TempDir()
	survey := filepath.Join(dir, "wellness.yaml")
	writeFile(t, survey, "x")

	p, err := OpenProject(survey)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Fallback {
		t.Skipf("found project %q above temp dir", p.Name)
	}
	abs, _ := filepath.Abs(dir)
	if p.Root != abs {
		t.Errorf("Root = %q, want %q", p.Root, abs)
	}
	if got, want := p.ScenarioDirFor(survey), filepath.Join(dir, "scenarios", "wellness"); got != want {
		t.Errorf("ScenarioDirFor = %q, want %q (next to the survey)", got, want)
	}
	if got, err := p.ResolveSurveyRef(survey); err != nil || got != survey {
		t.Errorf("ResolveSurveyRef = %q, %v", got, err)
	}
}
