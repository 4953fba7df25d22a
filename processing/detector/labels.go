package detector

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadLabels reads a YAML class-name list. Both a bare list and the
// ultralytics dataset form (`names:` as a list or an index map) are
// accepted.
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bare []string
	if err := yaml.Unmarshal(raw, &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parse labels")
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, errors.Wrap(err, "parse names list")
		}
		return names, nil
	case yaml.MappingNode:
		indexed := map[int]string{}
		if err := doc.Names.Decode(&indexed); err != nil {
			return nil, errors.Wrap(err, "parse names map")
		}
		maxIdx := -1
		for i := range indexed {
			if i > maxIdx {
				maxIdx = i
			}
		}
		names := make([]string, maxIdx+1)
		for i, n := range indexed {
			if i >= 0 {
				names[i] = n
			}
		}
		return names, nil
	default:
		return nil, errors.New("labels file has no class names")
	}
}
