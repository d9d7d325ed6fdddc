package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names lists the accepted manifest file names in lookup order.
// The .yml and .yaml spellings of each name are equivalent.
var Names = []string{
	"compose.yml",
	"compose.yaml",
	"docker-compose.yml",
	"docker-compose.yaml",
}

// Keys that carry template identity, first present wins.
var (
	typeKeys    = []string{"x-boxkit.template", "x-template"}
	versionKeys = []string{"x-boxkit.version", "x-template-version"}
)

// ValidTemplateType reports whether t can name a directory directly under
// the templates root: a single, non-hidden path element.
func ValidTemplateType(t string) bool {
	if t == "" || t == "." || t == ".." || strings.HasPrefix(t, ".") {
		return false
	}
	return !strings.ContainsAny(t, `/\`) && filepath.Base(t) == t
}

// Manifest is a flattened view of a compose-style manifest: top-level scalars
// keep their name, scalars one level down are keyed "parent.child".
type Manifest map[string]string

// Find returns the path of the manifest in dir, if any.
func Find(dir string) (string, bool) {
	for _, name := range Names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Load reads the manifest in dir. It returns nil, nil when none exists.
func Load(dir string) (Manifest, error) {
	path, ok := Find(dir)
	if !ok {
		return nil, nil
	}
	return LoadFile(path)
}

// LoadFile reads and parses the manifest at path.
func LoadFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// Parse flattens YAML data into key/value pairs. Sequences and anything
// nested deeper than one level are ignored.
func Parse(data []byte) (Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	m := Manifest{}
	if len(doc.Content) == 0 {
		return m, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level is not a mapping")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		switch value.Kind {
		case yaml.ScalarNode:
			m[key] = value.Value
		case yaml.MappingNode:
			for j := 0; j+1 < len(value.Content); j += 2 {
				child := value.Content[j+1]
				if child.Kind == yaml.ScalarNode {
					m[key+"."+value.Content[j].Value] = child.Value
				}
			}
		}
	}
	return m, nil
}

// Get returns the value stored under key.
func (m Manifest) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// TemplateType returns the template identifier the project was created from.
func (m Manifest) TemplateType() (string, bool) {
	return m.first(typeKeys)
}

// TemplateVersion returns the template version the project was created from.
func (m Manifest) TemplateVersion() (string, bool) {
	return m.first(versionKeys)
}

// Keys returns the manifest keys in sorted order
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Manifest) first(keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}
