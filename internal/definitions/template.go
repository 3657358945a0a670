package definitions

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// DefaultDescriptorFile is the template reference descriptor inside a definition
	DefaultDescriptorFile = "dockerfile_template.json"

	// DefaultBuildFile is the build file expected in the effective build context
	DefaultBuildFile = "Dockerfile"
)

//go:embed schema/template.schema.json
var templateSchemaJSON string

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// VersionSource reports the commit the definitions tree is checked out at
type VersionSource interface {
	HeadCommit() (string, error)
}

// TemplateResolverConfig contains the file layout used to resolve build specs
type TemplateResolverConfig struct {
	Root           string
	TemplatesDir   string
	DescriptorFile string
	BuildFile      string
}

// TemplateResolver turns a definition into a BuildSpec
type TemplateResolver struct {
	config TemplateResolverConfig
	source VersionSource
	now    func() time.Time
}

// NewTemplateResolver creates a template resolver. Empty config fields fall back to defaults.
func NewTemplateResolver(config TemplateResolverConfig, source VersionSource) *TemplateResolver {
	if config.TemplatesDir == "" {
		config.TemplatesDir = DefaultTemplatesDir
	}
	if config.DescriptorFile == "" {
		config.DescriptorFile = DefaultDescriptorFile
	}
	if config.BuildFile == "" {
		config.BuildFile = DefaultBuildFile
	}

	return &TemplateResolver{
		config: config,
		source: source,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for tag derivation
func (r *TemplateResolver) WithClock(now func() time.Time) *TemplateResolver {
	r.now = now
	return r
}

// Resolve determines the effective build context, build args and tag suffix for def
func (r *TemplateResolver) Resolve(def Definition) (BuildSpec, error) {
	spec := BuildSpec{
		Definition: def,
		ContextDir: def.Dir,
	}

	descriptorPath := filepath.Join(def.Dir, r.config.DescriptorFile)
	if isFile(descriptorPath) {
		ref, err := LoadTemplateRef(descriptorPath)
		if err != nil {
			return BuildSpec{}, MissingBuildFileError{Dir: def.Dir, Err: err}
		}

		spec.Template = ref.Template
		spec.ContextDir = filepath.Join(r.config.Root, r.config.TemplatesDir, ref.Template)
		spec.BuildArgs = ref.Args

		log.Debug().
			Str("definition", def.Name).
			Str("template", ref.Template).
			Strs("buildArgs", spec.BuildArgNames()).
			Msg("Definition uses shared template")
	}

	if !isFile(filepath.Join(spec.ContextDir, r.config.BuildFile)) {
		return BuildSpec{}, MissingBuildFileError{Dir: spec.ContextDir}
	}

	commit, err := r.source.HeadCommit()
	if err != nil {
		return BuildSpec{}, fmt.Errorf("failed to look up current commit hash: %w", err)
	}

	spec.TagSuffix, err = TagSuffix(commit, r.now())
	if err != nil {
		return BuildSpec{}, err
	}

	return spec, nil
}

// LoadTemplateRef reads and validates a template reference descriptor
func LoadTemplateRef(path string) (*TemplateRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template descriptor: %w", err)
	}

	return ParseTemplateRef(data)
}

// ParseTemplateRef validates data against the descriptor schema and decodes it
func ParseTemplateRef(data []byte) (*TemplateRef, error) {
	sch, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load template descriptor schema: %w", err)
	}

	var document any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("invalid template descriptor: %w", err)
	}

	if err := sch.Validate(document); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("invalid template descriptor: %s", verr.Error())
		}
		return nil, fmt.Errorf("invalid template descriptor: %w", err)
	}

	var ref TemplateRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("invalid template descriptor: %w", err)
	}

	return &ref, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("template.schema.json", strings.NewReader(templateSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("template.schema.json")
	})
	return compiledSchema, schemaErr
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
