package registry

import (
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"gopkg.in/yaml.v3"
)

// Group is a configurable metric group. Each [[metric.<name>]] section of a
// config file becomes one Group that registers its instrument on the sampler.
type Group interface {
	Init() error
	Create(s *sampler.SystemMetrics) error
}

var groupRegistry = make(map[string]RegisterItem)

type RegisterItem struct {
	Type         reflect.Type
	SampleConfig string
}

func Register(name string, nilPtr any) error {
	sampleConfig := ""
	if sample, ok := nilPtr.(interface{ SampleConfig() string }); ok {
		sampleConfig = sample.SampleConfig()
	}
	if _, ok := nilPtr.(Group); ok {
		groupRegistry[name] = RegisterItem{
			Type:         reflect.TypeOf(nilPtr).Elem(),
			SampleConfig: sampleConfig,
		}
		return nil
	}
	return fmt.Errorf("type %T is not a metric group", nilPtr)
}

// Names returns the registered group names in sorted order.
func Names() []string {
	names := []string{}
	for k := range groupRegistry {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func GenerateSampleConfig(w io.Writer) {
	for _, k := range Names() {
		sample := groupRegistry[k].SampleConfig
		fmt.Fprintln(w, sample)
		fmt.Fprintln(w)
	}
}

// LoadConfig registers every [[metric.<group>]] section of a TOML document
// on the sampler, in document order.
func LoadConfig(s *sampler.SystemMetrics, content string) error {
	cfg := make(map[string]any)
	groupNames := []string{}
	meta, err := toml.Decode(content, &cfg)
	if err != nil {
		return err
	}
	for _, keys := range meta.Keys() {
		if len(keys) != 2 {
			continue
		}
		kind, name := keys[0], keys[1]
		if kind != "metric" {
			continue
		}
		if slices.Contains(groupNames, name) {
			continue
		}
		groupNames = append(groupNames, name)
		sections, ok := ((cfg["metric"].(map[string]any))[name]).([]map[string]any)
		if !ok {
			return fmt.Errorf("metric.%s must be an array of tables", name)
		}
		for _, section := range sections {
			err := create(s, name, func(v any) error {
				b, err := toml.Marshal(section)
				if err != nil {
					return err
				}
				_, err = toml.Decode(string(b), v)
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadConfigYAML is LoadConfig for YAML documents, where groups are listed
// under a top-level "metric" mapping.
func LoadConfigYAML(s *sampler.SystemMetrics, content string) error {
	var doc struct {
		Metric yaml.Node `yaml:"metric"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return err
	}
	if doc.Metric.Kind == 0 {
		return nil
	}
	if doc.Metric.Kind != yaml.MappingNode {
		return fmt.Errorf("metric must be a mapping, line %d", doc.Metric.Line)
	}
	for i := 0; i+1 < len(doc.Metric.Content); i += 2 {
		name := doc.Metric.Content[i].Value
		sections := doc.Metric.Content[i+1]
		if sections.Kind != yaml.SequenceNode {
			return fmt.Errorf("metric.%s must be a list, line %d", name, sections.Line)
		}
		for _, section := range sections.Content {
			if err := create(s, name, section.Decode); err != nil {
				return err
			}
		}
	}
	return nil
}

func create(s *sampler.SystemMetrics, name string, decode func(v any) error) error {
	reg, ok := groupRegistry[name]
	if !ok {
		return fmt.Errorf("unknown metric group: %s", name)
	}
	v := reflect.New(reg.Type).Interface()
	if err := decode(v); err != nil {
		return fmt.Errorf("error decoding metric group %s: %w", name, err)
	}
	group, ok := v.(Group)
	if !ok {
		return fmt.Errorf("type %s does not implement registry.Group", name)
	}
	if err := group.Init(); err != nil {
		return fmt.Errorf("error initializing metric group %s: %w", name, err)
	}
	if err := group.Create(s); err != nil {
		return fmt.Errorf("error creating metric group %s: %w", name, err)
	}
	return nil
}
