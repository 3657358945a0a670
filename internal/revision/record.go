package revision

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Record is one revision file of a base image definition. Keys the tool does
// not know about are kept in Extra and written back out unchanged.
type Record struct {
	Revision int                    `yaml:"revision"`
	Image    ImageRef               `yaml:"image"`
	Extra    map[string]interface{} `yaml:",inline"`
}

// ImageRef is the published image a record points at
type ImageRef struct {
	Namespace  string                 `yaml:"namespace"`
	Repository string                 `yaml:"repository"`
	Tag        string                 `yaml:"tag"`
	Extra      map[string]interface{} `yaml:",inline"`
}

// Reference renders namespace/repository:tag
func (r ImageRef) Reference() string {
	return fmt.Sprintf("%s/%s:%s", r.Namespace, r.Repository, r.Tag)
}

// Next returns a copy of r advanced to revision and pointing at the given image.
// Unknown keys are carried over.
func (r Record) Next(revision int, namespace, repository, tag string) Record {
	next := Record{
		Revision: revision,
		Image: ImageRef{
			Namespace:  namespace,
			Repository: repository,
			Tag:        tag,
			Extra:      copyMap(r.Image.Extra),
		},
		Extra: copyMap(r.Extra),
	}
	return next
}

// ParseRecord decodes a revision file. A document without a revision key is rejected.
func ParseRecord(data []byte) (Record, error) {
	var probe struct {
		Revision *int `yaml:"revision"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Record{}, fmt.Errorf("invalid revision record: %w", err)
	}
	if probe.Revision == nil {
		return Record{}, fmt.Errorf("invalid revision record: missing revision")
	}

	var record Record
	if err := yaml.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("invalid revision record: %w", err)
	}
	return record, nil
}

// LoadRecord reads and decodes the revision file at path
func LoadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read revision record: %w", err)
	}

	record, err := ParseRecord(data)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return record, nil
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
