package definitions

import (
	"fmt"
	"sort"
)

// Definition is a named, on-disk unit describing how to build one base image.
// Its identity is the directory name under the definitions root.
type Definition struct {
	Name string
	Dir  string
}

// TemplateRef points a definition at a shared build context under the
// templates directory, parameterized by build arguments.
type TemplateRef struct {
	Template string            `json:"template"`
	Args     map[string]string `json:"args"`
}

// BuildSpec contains everything the build engine needs for one definition
type BuildSpec struct {
	Definition Definition
	ContextDir string
	BuildArgs  map[string]string
	TagSuffix  string

	// Template is empty when the definition carries its own Dockerfile
	Template string
}

// EngineBuildArgs converts build arguments to the pointer map the engine expects.
// Returns nil when there are no arguments.
func (s BuildSpec) EngineBuildArgs() map[string]*string {
	if len(s.BuildArgs) == 0 {
		return nil
	}

	args := make(map[string]*string, len(s.BuildArgs))
	for k, v := range s.BuildArgs {
		value := v
		args[k] = &value
	}
	return args
}

// BuildArgNames returns the build argument names in lexical order
func (s BuildSpec) BuildArgNames() []string {
	names := make([]string, 0, len(s.BuildArgs))
	for k := range s.BuildArgs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PublishTarget is the fully qualified coordinates of a pushed image
type PublishTarget struct {
	Namespace  string
	Repository string
	Tag        string
}

// Image returns namespace/repository
func (t PublishTarget) Image() string {
	return fmt.Sprintf("%s/%s", t.Namespace, t.Repository)
}

// Reference returns namespace/repository:tag
func (t PublishTarget) Reference() string {
	return fmt.Sprintf("%s:%s", t.Image(), t.Tag)
}
