package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// RuleEngine maps a rollup's failure signature to operator remediation steps
// shown on the flow detail view.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule fires its recommendations when every set field of Match agrees with the rollup.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch fields compare case-insensitively; unset fields are ignored.
type RuleMatch struct {
	Overall         string   `yaml:"overall"`
	Checkpoint      string   `yaml:"checkpoint"`
	SLAState        string   `yaml:"sla_state"`
	TechReasons     []string `yaml:"tech_reasons"`
	BusinessReasons []string `yaml:"business_reasons"`
	// ReasonPrefix matches either the tech or the business reason code.
	ReasonPrefix string `yaml:"reason_prefix"`
}

type rulePack struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads a rule pack. A blank or missing path yields a nil engine,
// which recommends nothing.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}

	var pack rulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse rule pack %s: %w", path, err)
	}
	seen := make(map[string]bool, len(pack.Rules))
	for i, rule := range pack.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule pack %s: rule %d has no id", path, i)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("rule pack %s: duplicate rule id %q", path, rule.ID)
		}
		seen[rule.ID] = true
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("remediation rules loaded", slog.String("path", path), slog.Int("rules", len(pack.Rules)))
	return &RuleEngine{rules: pack.Rules, logger: logger}, nil
}

// Recommend collects the recommendations of every matching rule in pack order, dropping repeats.
func (e *RuleEngine) Recommend(r models.Rollup) []string {
	if e == nil {
		return nil
	}
	var out []string
	for _, rule := range e.rules {
		if !rule.Match.matches(r) {
			continue
		}
		for _, rec := range rule.Recommendations {
			if rec != "" && !slices.Contains(out, rec) {
				out = append(out, rec)
			}
		}
	}
	return out
}

func (m RuleMatch) matches(r models.Rollup) bool {
	checks := []bool{
		m.Overall == "" || strings.EqualFold(m.Overall, string(r.Overall())),
		m.Checkpoint == "" || strings.EqualFold(m.Checkpoint, string(r.Tech.LastCheckpoint)),
		m.SLAState == "" || strings.EqualFold(m.SLAState, string(r.SLAState())),
		len(m.TechReasons) == 0 || anyFold(m.TechReasons, r.Tech.ReasonCode),
		len(m.BusinessReasons) == 0 || anyFold(m.BusinessReasons, r.Business.ReasonCode),
		m.ReasonPrefix == "" || hasPrefixFold(r.Tech.ReasonCode, m.ReasonPrefix) || hasPrefixFold(r.Business.ReasonCode, m.ReasonPrefix),
	}
	return !slices.Contains(checks, false)
}

func anyFold(values []string, target string) bool {
	return slices.ContainsFunc(values, func(v string) bool { return strings.EqualFold(v, target) })
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
