// Package gradecfg holds the per-grade assessment configuration: which
// question range belongs to which discipline, the four proficiency-tier
// bands, and whether the grade has a writing-production component. The
// configuration is data, shipped embedded so a deploy can't drift from the
// binary that interprets it.
package gradecfg

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/avaliaedu/avalia-backend/internal/textnorm"
)

//go:embed grades.yaml
var rawConfig []byte

type Discipline struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	First int    `yaml:"first"`
	Last  int    `yaml:"last"`
	// inclusive upper bounds of the four tier bands over correct-answer
	// counts, e.g. [3, 7, 11, 14] for a 14-question discipline.
	Tiers []int `yaml:"tiers"`
}

func (d Discipline) Questions() int { return d.Last - d.First + 1 }

func (d Discipline) Contains(q int) bool { return q >= d.First && q <= d.Last }

// TierFor maps a correct-answer count onto the 1..4 tier ordinal. Counts
// outside 0..N yield nil rather than clamping.
func (d Discipline) TierFor(correct int) *int {
	if correct < 0 {
		return nil
	}
	for i, ub := range d.Tiers {
		if correct <= ub {
			tier := i + 1
			return &tier
		}
	}
	return nil
}

type Grade struct {
	Label          string       `yaml:"label"`
	Aliases        []string     `yaml:"aliases"`
	AssessmentType string       `yaml:"assessment_type"`
	Writing        bool         `yaml:"writing"`
	Disciplines    []Discipline `yaml:"disciplines"`
}

func (g Grade) Questions() int {
	total := 0
	for _, d := range g.Disciplines {
		total += d.Questions()
	}
	return total
}

func (g Grade) Discipline(code string) *Discipline {
	for i := range g.Disciplines {
		if g.Disciplines[i].Code == code {
			return &g.Disciplines[i]
		}
	}
	return nil
}

type Config struct {
	TierLabels map[int]string `yaml:"tier_labels"`
	Grades     []Grade        `yaml:"grades"`

	byAlias map[string]*Grade
}

var (
	loadOnce sync.Once
	loaded   *Config
	loadErr  error
)

func Load() (*Config, error) {
	loadOnce.Do(func() {
		var cfg Config
		if err := yaml.Unmarshal(rawConfig, &cfg); err != nil {
			loadErr = fmt.Errorf("parse grades.yaml: %w", err)
			return
		}
		cfg.byAlias = make(map[string]*Grade)
		for i := range cfg.Grades {
			g := &cfg.Grades[i]
			cfg.byAlias[textnorm.Name(g.Label)] = g
			for _, a := range g.Aliases {
				cfg.byAlias[textnorm.Name(a)] = g
			}
		}
		loaded = &cfg
	})
	return loaded, loadErr
}

// ByLabel resolves a raw grade/series cell ("2º ano", "segundo ano", "2")
// against labels and aliases, accent- and case-insensitively.
func (c *Config) ByLabel(raw string) (*Grade, bool) {
	g, ok := c.byAlias[textnorm.Name(raw)]
	return g, ok
}

// MaxQuestions is the largest question count across all grades; the
// question catalog is sized by it.
func (c *Config) MaxQuestions() int {
	max := 0
	for _, g := range c.Grades {
		for _, d := range g.Disciplines {
			if d.Last > max {
				max = d.Last
			}
		}
	}
	return max
}

// RichestGrade is the grade with the most questions; its ranges seed the
// catalog's default discipline mapping.
func (c *Config) RichestGrade() *Grade {
	var best *Grade
	for i := range c.Grades {
		if best == nil || c.Grades[i].Questions() > best.Questions() {
			best = &c.Grades[i]
		}
	}
	return best
}

func (c *Config) TierLabel(ord int) string {
	return c.TierLabels[ord]
}
