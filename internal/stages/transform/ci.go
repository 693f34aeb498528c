package transform

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workflow is one converted destination workflow file.
type Workflow struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
	// Jobs lists converted job names in source order; they feed
	// branch-protection required status checks.
	Jobs []string `json:"jobs"`
}

// ciReservedKeys are source CI top-level keys that are not jobs.
var ciReservedKeys = map[string]bool{
	"stages": true, "variables": true, "include": true, "default": true,
	"workflow": true, "image": true, "services": true, "before_script": true,
	"after_script": true, "cache": true, "types": true,
}

// defaultStages is the source's implicit stage order.
var defaultStages = []string{".pre", "build", "test", "deploy", ".post"}

// scriptLines accepts a scalar or a sequence of scalars.
type scriptLines []string

func (s *scriptLines) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}

		return nil
	case yaml.SequenceNode:
		lines := make([]string, 0, len(node.Content))

		for _, item := range node.Content {
			if item.Kind == yaml.SequenceNode {
				var nested scriptLines

				err := nested.UnmarshalYAML(item)
				if err != nil {
					return err
				}

				lines = append(lines, nested...)

				continue
			}

			lines = append(lines, item.Value)
		}

		*s = lines

		return nil
	default:
		return fmt.Errorf("script must be a string or list at line %d", node.Line)
	}
}

// needsList accepts needs entries as plain names or {job: name}
// mappings.
type needsList []string

func (n *needsList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("needs must be a list at line %d", node.Line)
	}

	names := make([]string, 0, len(node.Content))

	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode {
			names = append(names, item.Value)

			continue
		}

		var long struct {
			Job string `yaml:"job"`
		}

		err := item.Decode(&long)
		if err != nil {
			return fmt.Errorf("decode needs entry at line %d: %w", item.Line, err)
		}

		if long.Job != "" {
			names = append(names, long.Job)
		}
	}

	*n = names

	return nil
}

// ciImage accepts a scalar image name or an {name: ...} mapping.
type ciImage struct {
	Name string
}

func (i *ciImage) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		i.Name = node.Value

		return nil
	}

	var long struct {
		Name string `yaml:"name"`
	}

	err := node.Decode(&long)
	if err != nil {
		return fmt.Errorf("decode image at line %d: %w", node.Line, err)
	}

	i.Name = long.Name

	return nil
}

// extendsList accepts a scalar or list of template names.
type extendsList []string

func (e *extendsList) UnmarshalYAML(node *yaml.Node) error {
	var lines scriptLines

	err := lines.UnmarshalYAML(node)
	if err != nil {
		return err
	}

	*e = []string(lines)

	return nil
}

// ciJob is the subset of the source job schema the converter handles.
// Unknown keys are ignored; known-but-unconvertible ones become gaps.
type ciJob struct {
	Stage        string            `yaml:"stage"`
	Image        *ciImage          `yaml:"image"`
	Script       scriptLines       `yaml:"script"`
	BeforeScript scriptLines       `yaml:"before_script"`
	AfterScript  scriptLines       `yaml:"after_script"`
	Variables    map[string]string `yaml:"variables"`
	When         string            `yaml:"when"`
	Only         any               `yaml:"only"`
	Except       any               `yaml:"except"`
	Rules        []any             `yaml:"rules"`
	Trigger      any               `yaml:"trigger"`
	Needs        needsList         `yaml:"needs"`
	AllowFailure any               `yaml:"allow_failure"`
	Artifacts    *ciArtifacts      `yaml:"artifacts"`
	Services     []any             `yaml:"services"`
	Parallel     any               `yaml:"parallel"`
	Environment  *ciEnvironment    `yaml:"environment"`
	Tags         []string          `yaml:"tags"`
	Extends      extendsList       `yaml:"extends"`
}

type ciArtifacts struct {
	Paths []string `yaml:"paths"`
}

type ciEnvironment struct {
	Name string
}

func (e *ciEnvironment) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value

		return nil
	}

	var long struct {
		Name string `yaml:"name"`
	}

	err := node.Decode(&long)
	if err != nil {
		return fmt.Errorf("decode environment at line %d: %w", node.Line, err)
	}

	e.Name = long.Name

	return nil
}

// ciConfig is the parsed source pipeline with job order preserved.
type ciConfig struct {
	stages       []string
	variables    map[string]string
	globalImage  *ciImage
	beforeScript scriptLines
	afterScript  scriptLines
	hasInclude   bool

	jobOrder  []string
	jobs      map[string]*ciJob
	templates map[string]*ciJob
}

// parseCIConfig decodes the source YAML, separating jobs, hidden
// templates, and the global sections.
func parseCIConfig(src []byte) (*ciConfig, error) {
	var doc yaml.Node

	err := yaml.Unmarshal(src, &doc)
	if err != nil {
		return nil, fmt.Errorf("parse ci config: %w", err)
	}

	cfg := &ciConfig{
		jobs:      map[string]*ciJob{},
		templates: map[string]*ciJob{},
	}

	if len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ci config root must be a mapping, got kind %d", root.Kind)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		value := root.Content[i+1]

		decodeErr := cfg.decodeTopLevel(key, value)
		if decodeErr != nil {
			return nil, decodeErr
		}
	}

	if len(cfg.stages) == 0 {
		cfg.stages = defaultStages
	}

	return cfg, nil
}

func (cfg *ciConfig) decodeTopLevel(key string, value *yaml.Node) error {
	switch key {
	case "stages":
		return value.Decode(&cfg.stages)
	case "variables":
		return value.Decode(&cfg.variables)
	case "image":
		cfg.globalImage = &ciImage{}

		return value.Decode(cfg.globalImage)
	case "before_script":
		return value.Decode(&cfg.beforeScript)
	case "after_script":
		return value.Decode(&cfg.afterScript)
	case "include":
		cfg.hasInclude = true

		return nil
	case "default":
		var defaults struct {
			Image        *ciImage    `yaml:"image"`
			BeforeScript scriptLines `yaml:"before_script"`
			AfterScript  scriptLines `yaml:"after_script"`
		}

		err := value.Decode(&defaults)
		if err != nil {
			return fmt.Errorf("decode default section: %w", err)
		}

		if defaults.Image != nil {
			cfg.globalImage = defaults.Image
		}

		if len(defaults.BeforeScript) > 0 {
			cfg.beforeScript = defaults.BeforeScript
		}

		if len(defaults.AfterScript) > 0 {
			cfg.afterScript = defaults.AfterScript
		}

		return nil
	}

	if ciReservedKeys[key] {
		return nil
	}

	job := &ciJob{}

	err := value.Decode(job)
	if err != nil {
		return fmt.Errorf("decode job %s: %w", key, err)
	}

	if strings.HasPrefix(key, ".") {
		cfg.templates[key] = job

		return nil
	}

	cfg.jobOrder = append(cfg.jobOrder, key)
	cfg.jobs[key] = job

	return nil
}

// resolveExtends merges template fields into a job, leaving fields the
// job sets itself untouched.
func (cfg *ciConfig) resolveExtends(job *ciJob, gaps *GapSet, name string) {
	for _, templateName := range job.Extends {
		base, ok := cfg.templates[templateName]
		if !ok {
			base, ok = cfg.jobs[templateName]
		}

		if !ok {
			gaps.Addf("ci_cd", "extends", SeverityWarning,
				"job %s extends unknown template %s", name, templateName)

			continue
		}

		if job.Stage == "" {
			job.Stage = base.Stage
		}

		if job.Image == nil {
			job.Image = base.Image
		}

		if len(job.Script) == 0 {
			job.Script = base.Script
		}

		if len(job.BeforeScript) == 0 {
			job.BeforeScript = base.BeforeScript
		}

		if len(job.AfterScript) == 0 {
			job.AfterScript = base.AfterScript
		}

		if job.Variables == nil {
			job.Variables = base.Variables
		}
	}
}

// Destination workflow document shape. Field order here is the emitted
// YAML order.
type ghaStep struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

type ghaJob struct {
	Name            string            `yaml:"name,omitempty"`
	RunsOn          string            `yaml:"runs-on"`
	Container       string            `yaml:"container,omitempty"`
	Environment     string            `yaml:"environment,omitempty"`
	Needs           []string          `yaml:"needs,omitempty"`
	ContinueOnError bool              `yaml:"continue-on-error,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	Steps           []ghaStep         `yaml:"steps"`
}

type ghaTriggers struct {
	Push             *ghaBranchFilter `yaml:"push,omitempty"`
	PullRequest      *ghaBranchFilter `yaml:"pull_request,omitempty"`
	WorkflowDispatch *struct{}        `yaml:"workflow_dispatch,omitempty"`
}

type ghaBranchFilter struct {
	Branches []string `yaml:"branches,omitempty"`
}

// ghaJobMap preserves job order when marshaling.
type ghaJobMap struct {
	order []string
	jobs  map[string]ghaJob
}

func (m ghaJobMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	for _, id := range m.order {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: id}
		valueNode := &yaml.Node{}

		err := valueNode.Encode(m.jobs[id])
		if err != nil {
			return nil, fmt.Errorf("encode job %s: %w", id, err)
		}

		node.Content = append(node.Content, keyNode, valueNode)
	}

	return node, nil
}

type ghaWorkflow struct {
	Name string            `yaml:"name"`
	On   ghaTriggers       `yaml:"on"`
	Env  map[string]string `yaml:"env,omitempty"`
	Jobs ghaJobMap         `yaml:"jobs"`
}

// invalidJobID matches characters the destination rejects in job ids.
var invalidJobID = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeJobID(name string) string {
	id := invalidJobID.ReplaceAllString(name, "_")
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		id = "job_" + id
	}

	return id
}

// ciConverter turns one source pipeline into a destination workflow.
type ciConverter struct {
	defaultBranch string
	registry      *registryRewriter
}

// convert produces the workflow file plus the ordered job name list.
func (c *ciConverter) convert(src []byte, gaps *GapSet) (Workflow, error) {
	cfg, err := parseCIConfig(src)
	if err != nil {
		return Workflow{}, err
	}

	if cfg.hasInclude {
		gaps.Add(Gap{
			Component:  "ci_cd",
			Construct:  "include",
			Severity:   SeverityWarning,
			Detail:     "pipeline uses include directives; included definitions are not inlined",
			Suggestion: "Inline the included templates or convert them to reusable workflows.",
		})
	}

	workflow := ghaWorkflow{
		Name: "CI",
		On: ghaTriggers{
			Push:        &ghaBranchFilter{Branches: []string{c.defaultBranch}},
			PullRequest: &ghaBranchFilter{},
		},
		Env:  c.rewriteVariables(cfg.variables),
		Jobs: ghaJobMap{jobs: map[string]ghaJob{}},
	}

	stageJobs := map[string][]string{}
	jobNames := make([]string, 0, len(cfg.jobOrder))

	for _, name := range cfg.jobOrder {
		job := cfg.jobs[name]
		cfg.resolveExtends(job, gaps, name)

		converted, skip := c.convertJob(name, job, cfg, stageJobs, gaps)
		if skip {
			continue
		}

		id := sanitizeJobID(name)
		workflow.Jobs.order = append(workflow.Jobs.order, id)
		workflow.Jobs.jobs[id] = converted
		jobNames = append(jobNames, name)

		stage := job.Stage
		if stage == "" {
			stage = "test"
		}

		stageJobs[stage] = append(stageJobs[stage], id)

		if job.When == "manual" {
			workflow.On.WorkflowDispatch = &struct{}{}
		}
	}

	content, marshalErr := yaml.Marshal(workflow)
	if marshalErr != nil {
		return Workflow{}, fmt.Errorf("render workflow: %w", marshalErr)
	}

	return Workflow{
		FileName: "ci.yml",
		Content:  string(content),
		Jobs:     jobNames,
	}, nil
}

func (c *ciConverter) convertJob(name string, job *ciJob, cfg *ciConfig, stageJobs map[string][]string, gaps *GapSet) (ghaJob, bool) {
	if job.Trigger != nil {
		gaps.Addf("ci_cd", "trigger", SeverityWarning,
			"job %s triggers a downstream pipeline; the destination has no direct equivalent", name)

		return ghaJob{}, true
	}

	converted := ghaJob{
		Name:   name,
		RunsOn: "ubuntu-latest",
		Env:    c.rewriteVariables(job.Variables),
		Steps:  []ghaStep{{Name: "Checkout", Uses: "actions/checkout@v4"}},
	}

	image := job.Image
	if image == nil {
		image = cfg.globalImage
	}

	if image != nil {
		converted.Container = c.registry.rewrite(image.Name)
	}

	if job.Environment != nil {
		converted.Environment = job.Environment.Name
	}

	converted.Needs = c.jobNeeds(job, cfg, stageJobs)

	if allowed, ok := job.AllowFailure.(bool); ok && allowed {
		converted.ContinueOnError = true
	}

	script := c.buildScript(job, cfg)
	if script != "" {
		converted.Steps = append(converted.Steps, ghaStep{Name: "Run", Run: script})
	}

	if job.Artifacts != nil && len(job.Artifacts.Paths) > 0 {
		converted.Steps = append(converted.Steps, ghaStep{
			Name: "Upload artifacts",
			Uses: "actions/upload-artifact@v4",
			With: map[string]string{
				"name": sanitizeJobID(name) + "-artifacts",
				"path": strings.Join(job.Artifacts.Paths, "\n"),
			},
		})
	}

	c.recordJobGaps(name, job, gaps)

	return converted, false
}

// jobNeeds maps explicit needs, falling back to the previous stage's
// jobs to preserve the source's stage ordering.
func (c *ciConverter) jobNeeds(job *ciJob, cfg *ciConfig, stageJobs map[string][]string) []string {
	if len(job.Needs) > 0 {
		needs := make([]string, 0, len(job.Needs))

		for _, need := range job.Needs {
			needs = append(needs, sanitizeJobID(need))
		}

		return needs
	}

	stage := job.Stage
	if stage == "" {
		stage = "test"
	}

	for i, candidate := range cfg.stages {
		if candidate != stage {
			continue
		}

		// Walk back to the nearest earlier stage that has jobs.
		for j := i - 1; j >= 0; j-- {
			if prev := stageJobs[cfg.stages[j]]; len(prev) > 0 {
				needs := make([]string, len(prev))
				copy(needs, prev)

				return needs
			}
		}

		break
	}

	return nil
}

func (c *ciConverter) buildScript(job *ciJob, cfg *ciConfig) string {
	var lines []string

	before := job.BeforeScript
	if len(before) == 0 {
		before = cfg.beforeScript
	}

	lines = append(lines, before...)
	lines = append(lines, job.Script...)

	after := job.AfterScript
	if len(after) == 0 {
		after = cfg.afterScript
	}

	lines = append(lines, after...)

	for i, line := range lines {
		lines[i] = c.registry.rewrite(line)
	}

	return strings.Join(lines, "\n")
}

func (c *ciConverter) recordJobGaps(name string, job *ciJob, gaps *GapSet) {
	if len(job.Rules) > 0 || job.Only != nil || job.Except != nil {
		gaps.Addf("ci_cd", "run_conditions", SeverityWarning,
			"job %s uses rules/only/except; run conditions are not translated", name)
	}

	if job.When == "manual" {
		gaps.Addf("ci_cd", "manual_job", SeverityInfo,
			"job %s is manual; the workflow gains a workflow_dispatch trigger instead", name)
	}

	if len(job.Services) > 0 {
		gaps.Addf("ci_cd", "services", SeverityWarning,
			"job %s declares service containers; re-declare them as destination job services", name)
	}

	if job.Parallel != nil {
		gaps.Addf("ci_cd", "parallel", SeverityInfo,
			"job %s uses parallel; model it as a matrix strategy", name)
	}

	if len(job.Tags) > 0 {
		gaps.Addf("ci_cd", "runner_tags", SeverityInfo,
			"job %s pins runner tags %v; converted to ubuntu-latest", name, job.Tags)
	}
}

// rewriteVariables copies a variables map with registry references
// rewritten.
func (c *ciConverter) rewriteVariables(vars map[string]string) map[string]string {
	if len(vars) == 0 {
		return nil
	}

	out := make(map[string]string, len(vars))

	for key, value := range vars {
		out[key] = c.registry.rewrite(value)
	}

	return out
}
