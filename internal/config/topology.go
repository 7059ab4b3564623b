package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ca-srg/treesearch/internal/types"
)

// DefaultBaseXPort is the port a BaseX server listens on out of the box.
const DefaultBaseXPort = 1984

// DefaultCategories are the Alpino phrasal categories grinded data is split by.
var DefaultCategories = []string{
	"ap", "advp", "ahi", "acl", "conj", "cp", "detp", "du", "inf", "np", "oti",
	"pp", "ppart", "ppres", "rel", "smain", "ssub", "sv1", "svan", "ti", "whq",
	"whrel", "whsub",
}

// Topology describes which corpora exist, how they are split into
// components and which BaseX server backs each component.
type Topology struct {
	Server     types.ServerInfo  `yaml:"server"`
	Categories []string          `yaml:"categories"`
	Corpora    map[string]Corpus `yaml:"corpora"`
}

// Corpus is one treebank in the topology file.
type Corpus struct {
	Title      string               `yaml:"title"`
	Grinded    bool                 `yaml:"grinded"`
	Server     *types.ServerInfo    `yaml:"server"`
	Components map[string]Component `yaml:"components"`
}

// Component is one searchable part of a corpus.
type Component struct {
	Title  string            `yaml:"title"`
	Server *types.ServerInfo `yaml:"server"`
}

// LoadTopology loads and validates the topology from a YAML file
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology parses topology YAML.
func ParseTopology(data []byte) (*Topology, error) {
	var topology Topology
	if err := yaml.Unmarshal(data, &topology); err != nil {
		return nil, fmt.Errorf("failed to parse topology YAML: %w", err)
	}

	if err := validateTopology(&topology); err != nil {
		return nil, fmt.Errorf("topology validation failed: %w", err)
	}

	applyTopologyDefaults(&topology)

	return &topology, nil
}

func validateTopology(t *Topology) error {
	if len(t.Corpora) == 0 {
		return fmt.Errorf("at least one corpus must be configured")
	}

	for name, corpus := range t.Corpora {
		if len(corpus.Components) == 0 {
			return fmt.Errorf("corpus %s: at least one component is required", name)
		}
		if corpus.Server != nil && corpus.Server.Port < 0 {
			return fmt.Errorf("corpus %s: invalid port %d", name, corpus.Server.Port)
		}
		for component, c := range corpus.Components {
			if component == "" {
				return fmt.Errorf("corpus %s: component name cannot be empty", name)
			}
			if c.Server != nil && c.Server.Port < 0 {
				return fmt.Errorf("corpus %s component %s: invalid port %d", name, component, c.Server.Port)
			}
		}
	}

	return nil
}

func applyTopologyDefaults(t *Topology) {
	if t.Server.Host == "" {
		t.Server.Host = "localhost"
	}
	if t.Server.Port == 0 {
		t.Server.Port = DefaultBaseXPort
	}
	if t.Server.Username == "" {
		t.Server.Username = "admin"
	}
	if len(t.Categories) == 0 {
		t.Categories = append([]string(nil), DefaultCategories...)
	}
}

// ServerInfo resolves the BaseX server for a component. Component settings
// override corpus settings, which override the top-level server.
func (t *Topology) ServerInfo(corpus, component string) (types.ServerInfo, error) {
	c, ok := t.Corpora[corpus]
	if !ok {
		return types.ServerInfo{}, fmt.Errorf("unknown corpus %q", corpus)
	}
	comp, ok := c.Components[component]
	if !ok {
		return types.ServerInfo{}, fmt.Errorf("unknown component %q in corpus %q", component, corpus)
	}

	info := t.Server
	overlayServer(&info, c.Server)
	overlayServer(&info, comp.Server)
	return info, nil
}

func overlayServer(dst *types.ServerInfo, src *types.ServerInfo) {
	if src == nil {
		return
	}
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
}

// IsGrinded reports whether the corpus ships grinded data.
func (t *Topology) IsGrinded(corpus string) bool {
	return t.Corpora[corpus].Grinded
}

// HasComponent reports whether component belongs to corpus.
func (t *Topology) HasComponent(corpus, component string) bool {
	_, ok := t.Corpora[corpus].Components[component]
	return ok
}

// Components lists the components of a corpus in name order.
func (t *Topology) Components(corpus string) []string {
	c := t.Corpora[corpus]
	names := make([]string, 0, len(c.Components))
	for name := range c.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Treebanks lists every configured corpus in name order.
func (t *Topology) Treebanks() []types.Treebank {
	names := make([]string, 0, len(t.Corpora))
	for name := range t.Corpora {
		names = append(names, name)
	}
	sort.Strings(names)

	treebanks := make([]types.Treebank, 0, len(names))
	for _, name := range names {
		c := t.Corpora[name]
		treebanks = append(treebanks, types.Treebank{
			Name:       name,
			Title:      c.Title,
			Grinded:    c.Grinded,
			Components: t.Components(name),
		})
	}
	return treebanks
}
