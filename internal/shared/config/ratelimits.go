package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RateLimitRule overrides the token bucket for one route group.
type RateLimitRule struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type rateLimitFile struct {
	Groups map[string]RateLimitRule `yaml:"groups"`
}

// LoadRateLimits reads per-group overrides from a YAML file:
//
//	groups:
//	  QUERY: {rate: 2, burst: 20}
//
// Group names are upper-cased. Rules with a non-positive rate or burst are
// rejected.
func LoadRateLimits(path string) (map[string]RateLimitRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limits: %w", err)
	}
	var file rateLimitFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rate limits: %w", err)
	}
	out := make(map[string]RateLimitRule, len(file.Groups))
	for name, rule := range file.Groups {
		group := strings.ToUpper(strings.TrimSpace(name))
		if group == "" {
			continue
		}
		if rule.Rate <= 0 || rule.Burst <= 0 {
			return nil, fmt.Errorf("rate limits: group %s needs positive rate and burst", group)
		}
		out[group] = rule
	}
	return out, nil
}

func loadRateLimitsFromEnv() map[string]RateLimitRule {
	path := strings.TrimSpace(os.Getenv("RATE_LIMIT_CONFIG"))
	if path == "" {
		return nil
	}
	rules, err := LoadRateLimits(path)
	if err != nil {
		log.Printf("config: ignoring %s: %v", path, err)
		return nil
	}
	return rules
}
