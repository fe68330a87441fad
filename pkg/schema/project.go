package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the manifest name looked up by DiscoverProject.
const ProjectFile = "wizard.yaml"

// Project represents a wizard.yaml manifest: where a repository keeps its
// surveys and scenarios, and the defaults the CLI applies when running them.
type Project struct {
	Name     string          `yaml:"name"               json:"name"`
	Paths    ProjectPaths    `yaml:"paths,omitempty"    json:"paths,omitempty"`
	Defaults ProjectDefaults `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Root is the absolute path to the directory containing wizard.yaml.
	// Set after loading/discovery, not from YAML.
	Root string `yaml:"-" json:"-"`

	// Fallback is set on projects made up by FallbackProject.
	Fallback bool `yaml:"-" json:"-"`
}

// ProjectPaths overrides convention directories. Defaults: surveys → "surveys",
// scenarios → "scenarios".
type ProjectPaths struct {
	Surveys   string `yaml:"surveys,omitempty"   json:"surveys,omitempty"`
	Scenarios string `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
}

// ProjectDefaults are CLI defaults; flags and environment variables win.
type ProjectDefaults struct {
	UI       string `yaml:"ui,omitempty"        json:"ui,omitempty"`
	TraceDir string `yaml:"trace_dir,omitempty" json:"trace_dir,omitempty"`
}

// SurveysDir returns the effective surveys directory name (default: "surveys").
func (p *Project) SurveysDir() string {
	if p != nil && p.Paths.Surveys != "" {
		return p.Paths.Surveys
	}
	return "surveys"
}

// ScenariosDir returns the effective scenarios directory name (default: "scenarios").
func (p *Project) ScenariosDir() string {
	if p != nil && p.Paths.Scenarios != "" {
		return p.Paths.Scenarios
	}
	return "scenarios"
}

// ResolveSurveyRef resolves a survey reference to an absolute filesystem path.
//
// A reference that names an existing file is returned as is. Otherwise:
//
//	"wellness"        → <Root>/<SurveysDir>/wellness.yaml
//	"intake/wellness" → <Root>/<SurveysDir>/intake/wellness.yaml
//	"wellness"        → <Root>/<SurveysDir>/wellness/wellness.yaml (directory convention)
func (p *Project) ResolveSurveyRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty survey reference")
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return filepath.Abs(ref)
	}
	if p == nil {
		return "", fmt.Errorf("survey %q not found and no project context", ref)
	}

	dir := filepath.Join(p.Root, p.SurveysDir())
	name := strings.TrimSuffix(ref, ".yaml")
	for _, candidate := range []string{
		filepath.Join(dir, name+".yaml"),
		filepath.Join(dir, name, filepath.Base(name)+".yaml"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("survey %q not found in %s", ref, dir)
}

// ScenarioDirFor returns the scenario directory for a survey file: the
// project's scenarios/<survey-name> when a manifest was found, otherwise
// scenarios/<survey-name> next to the survey file.
func (p *Project) ScenarioDirFor(surveyPath string) string {
	name := strings.TrimSuffix(filepath.Base(surveyPath), filepath.Ext(surveyPath))
	if p != nil && p.Root != "" && !p.Fallback {
		return filepath.Join(p.Root, p.ScenariosDir(), name)
	}
	return filepath.Join(filepath.Dir(surveyPath), "scenarios", name)
}

// LoadProjectFile reads and parses a wizard.yaml manifest.
func LoadProjectFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project manifest: %w", err)
	}

	var proj Project
	if err := yaml.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("parse project manifest: %w", err)
	}

	if proj.Name == "" {
		return nil, fmt.Errorf("project manifest %s: name is required", path)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	proj.Root = abs
	return &proj, nil
}

// DiscoverProject walks up from startPath to find the nearest wizard.yaml.
// Returns nil (no error) if no manifest is found; the caller should
// use OpenProject to get a FallbackProject in that case.
func DiscoverProject(startPath string) (*Project, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return nil, err
	}

	// If startPath is a file, start from its directory
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		candidate := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			return LoadProjectFile(candidate)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// FallbackProject creates a minimal project rooted at the given directory
// with default conventions. Used when no wizard.yaml is found.
func FallbackProject(dir string) *Project {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Project{
		Name:     filepath.Base(abs),
		Root:     abs,
		Fallback: true,
	}
}

// OpenProject returns the project enclosing startPath, or a fallback
// project rooted at startPath's directory when there is no wizard.yaml.
func OpenProject(startPath string) (*Project, error) {
	p, err := DiscoverProject(startPath)
	if err != nil || p != nil {
		return p, err
	}
	dir := startPath
	if info, err := os.Stat(startPath); err == nil && !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	return FallbackProject(dir), nil
}
