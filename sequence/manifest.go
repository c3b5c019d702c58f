package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"clipjoin/models"
	"clipjoin/transition"
)

// Manifest describes one or more render jobs in YAML.
//
//	jobs:
//	  - name: intro
//	    output: out/intro.mp4
//	    clips:
//	      - path: a.mp4
//	      - path: b.mp4
//	        trim: {start: 2, length: 10}
//	        transition: {duration: 1, mode: no_increase, effect: dissolve}
type Manifest struct {
	Jobs []JobSpec `yaml:"jobs"`
}

// JobSpec is one manifest entry.
type JobSpec struct {
	Name      string   `yaml:"name"`
	Output    string   `yaml:"output"`
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Transition applies to every clip after the first that does not set its own.
	Transition *TransitionSpec `yaml:"transition,omitempty"`
	Clips      []ClipSpec      `yaml:"clips"`
}

// ClipSpec is one clip entry; Transition joins it to the previous clip.
type ClipSpec struct {
	Path       string          `yaml:"path"`
	Trim       *TrimSpec       `yaml:"trim,omitempty"`
	Transition *TransitionSpec `yaml:"transition,omitempty"`
}

// TrimSpec selects a sub-range of a clip.
type TrimSpec struct {
	Start  float64 `yaml:"start"`
	Length float64 `yaml:"length"`
}

// TransitionSpec is the manifest form of a join. Mode defaults to increase,
// matching the command line list syntax.
type TransitionSpec struct {
	Duration float64 `yaml:"duration"`
	Mode     string  `yaml:"mode"`
	Effect   string  `yaml:"effect"`
}

// Job is a manifest entry resolved into a buildable sequence.
type Job struct {
	Name      string
	Output    string
	DependsOn []string
	Sequence  *Sequence
}

// LoadManifest reads and resolves a manifest file. Relative clip and output
// paths are resolved against the manifest's directory.
func LoadManifest(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	return ParseManifest(data, filepath.Dir(abs))
}

// ParseManifest decodes manifest YAML and builds one Sequence per job.
// baseDir anchors relative paths; empty leaves them untouched.
func ParseManifest(data []byte, baseDir string) ([]Job, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest defines no jobs")
	}

	names := make(map[string]bool, len(m.Jobs))
	jobs := make([]Job, 0, len(m.Jobs))
	for i, spec := range m.Jobs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			name = fmt.Sprintf("job-%d", i+1)
		}
		if names[name] {
			return nil, fmt.Errorf("duplicate job name %q", name)
		}
		names[name] = true

		if strings.TrimSpace(spec.Output) == "" {
			return nil, fmt.Errorf("job %q: output is required", name)
		}
		seq, err := spec.build(baseDir)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", name, err)
		}
		jobs = append(jobs, Job{
			Name:      name,
			Output:    resolve(baseDir, spec.Output),
			DependsOn: spec.DependsOn,
			Sequence:  seq,
		})
	}

	for _, job := range jobs {
		for _, dep := range job.DependsOn {
			if !names[dep] {
				return nil, fmt.Errorf("job %q depends on unknown job %q", job.Name, dep)
			}
		}
	}
	return jobs, nil
}

func (j JobSpec) build(baseDir string) (*Sequence, error) {
	b := New()
	for i, c := range j.Clips {
		join := transition.Cut()
		ts := c.Transition
		if ts == nil && i > 0 {
			ts = j.Transition
		}
		if ts != nil {
			if i == 0 && c.Transition != nil {
				return nil, &DefinitionError{Index: 0, Reason: "the first clip cannot have a transition"}
			}
			parsed, err := ts.parse()
			if err != nil {
				return nil, &DefinitionError{Index: i, Reason: "invalid transition", Err: err}
			}
			join = parsed
		}

		clip := models.Clip{Path: resolve(baseDir, c.Path)}
		if c.Trim != nil {
			clip.TrimStart, clip.TrimLength = c.Trim.Start, c.Trim.Length
		}
		b.AppendClip(clip, join)
	}
	return b.Build()
}

func (t TransitionSpec) parse() (transition.Spec, error) {
	mode := transition.ModeIncrease
	if strings.TrimSpace(t.Mode) != "" {
		m, err := transition.ParseMode(t.Mode)
		if err != nil {
			return transition.Spec{}, err
		}
		mode = m
	}
	effect, err := transition.ParseEffect(t.Effect)
	if err != nil {
		return transition.Spec{}, err
	}
	return transition.Crossfade(t.Duration, effect, mode), nil
}

func resolve(baseDir, path string) string {
	if baseDir == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
