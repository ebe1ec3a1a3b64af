package fixtures

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/docform/pkg/schema"
	"github.com/faciam-dev/docform/sdk/client"
)

// ErrNoName is returned for a fixture document without a name.
var ErrNoName = errors.New("fixture document has no name")

// Set is the content of one or more fixture files: doctype metadata,
// documents keyed by doctype and company currencies keyed by company.
type Set struct {
	DocTypes  []*schema.Schema           `yaml:"doctypes"`
	Documents map[string][]schema.Record `yaml:"documents"`
	Companies map[string]string          `yaml:"companies"`
}

// Load reads one fixture file.
func Load(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Set
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for dt, docs := range s.Documents {
		for i, d := range docs {
			if d.Name() == "" {
				return nil, fmt.Errorf("%s: %s[%d]: %w", path, dt, i, ErrNoName)
			}
		}
	}
	return &s, nil
}

func isFixture(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".yaml" || ext == ".yml"
}

// LoadDir merges every YAML file of dir in name order. Later files replace
// doctypes and documents of the same name.
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isFixture(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	out := &Set{Documents: map[string][]schema.Record{}, Companies: map[string]string{}}
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		out.merge(s)
	}
	return out, nil
}

func (s *Set) merge(o *Set) {
	for _, dt := range o.DocTypes {
		replaced := false
		for i, cur := range s.DocTypes {
			if cur.DocType == dt.DocType {
				s.DocTypes[i] = dt
				replaced = true
			}
		}
		if !replaced {
			s.DocTypes = append(s.DocTypes, dt)
		}
	}
	for dt, docs := range o.Documents {
		s.Documents[dt] = append(s.Documents[dt], docs...)
	}
	for c, cur := range o.Companies {
		s.Companies[c] = cur
	}
}

// Apply loads the set into m.
func (s *Set) Apply(m *client.Memory) {
	for _, dt := range s.DocTypes {
		m.PutSchema(dt)
	}
	for dt, docs := range s.Documents {
		for _, d := range docs {
			m.PutDocument(dt, d)
		}
	}
	for c, cur := range s.Companies {
		m.PutCompany(c, cur)
	}
}

// Replace swaps the content of m for the fixtures in one step.
func (s *Set) Replace(m *client.Memory) {
	staged := client.NewMemory()
	s.Apply(staged)
	m.Replace(staged)
}

// Memory returns a fresh memory transport holding the fixtures of dir.
func Memory(dir string) (*client.Memory, error) {
	s, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	m := client.NewMemory()
	s.Apply(m)
	return m, nil
}
