package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// document mirrors the YAML policy file layout.
type document struct {
	StrictMode   bool                `yaml:"strict_mode"`
	AllowedTools []string            `yaml:"allowed_tools"`
	BlockedTools []string            `yaml:"blocked_tools"`
	RiskLevels   map[string][]string `yaml:"risk_levels"`

	ParameterRules struct {
		DatabaseQueries struct {
			MaxLength       int      `yaml:"max_length"`
			BlockedPatterns []string `yaml:"blocked_patterns"`
		} `yaml:"database_queries"`
		SystemCommands struct {
			MaxLength       int      `yaml:"max_length"`
			BlockedPatterns []string `yaml:"blocked_patterns"`
		} `yaml:"system_commands"`
		FilePaths struct {
			MaxLength         int      `yaml:"max_length"`
			BlockedPrefixes   []string `yaml:"blocked_prefixes"`
			AllowedExtensions []string `yaml:"allowed_extensions"`
		} `yaml:"file_paths"`
		URLs struct {
			MaxLength      int      `yaml:"max_length"`
			AllowedSchemes []string `yaml:"allowed_schemes"`
			BlockedDomains []string `yaml:"blocked_domains"`
		} `yaml:"urls"`
		Applications struct {
			Allowed []string `yaml:"allowed"`
		} `yaml:"applications"`
	} `yaml:"parameter_rules"`

	PIIPatterns map[string]struct {
		Pattern string `yaml:"pattern"`
		Mask    string `yaml:"mask"`
	} `yaml:"pii_patterns"`

	RateLimits struct {
		ActionsPerMinute map[string]int `yaml:"actions_per_minute"`
	} `yaml:"rate_limits"`

	ToolSchemas map[string]map[string]any `yaml:"tool_schemas"`
}

// Load reads the policy document at path. It never fails: a missing or
// malformed file is logged and degraded to the empty (fail-closed) policy.
func Load(path string, logger *zap.Logger) *PolicySet {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("policy file unreadable, using empty fail-closed policy",
			zap.String("path", path),
			zap.Error(err),
		)
		return Empty()
	}
	ps, err := Parse(data, logger)
	if err != nil {
		logger.Error("policy file malformed, using empty fail-closed policy",
			zap.String("path", path),
			zap.Error(err),
		)
		return Empty()
	}
	return ps
}

// Parse decodes a YAML policy document. Field-level problems (a PII pattern or
// tool schema that does not compile, an unknown risk bucket) are logged and
// the field is dropped; only an undecodable document returns an error.
func Parse(data []byte, logger *zap.Logger) (*PolicySet, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}

	ps := Empty()
	ps.StrictMode = doc.StrictMode

	for _, t := range doc.AllowedTools {
		ps.AllowedTools[t] = struct{}{}
	}
	for _, t := range doc.BlockedTools {
		ps.BlockedTools[t] = struct{}{}
	}

	known := map[string]bool{}
	for _, b := range bucketNames {
		known[b] = true
	}
	for bucket, tools := range doc.RiskLevels {
		if !known[bucket] {
			logger.Warn("unknown risk bucket in policy, skipping",
				zap.String("bucket", bucket),
			)
			continue
		}
		for _, t := range tools {
			ps.toolBuckets[t] = bucket
		}
	}

	ps.Rules = ParameterRules{
		DatabaseQueries: QueryRules{
			MaxLength:       doc.ParameterRules.DatabaseQueries.MaxLength,
			BlockedPatterns: doc.ParameterRules.DatabaseQueries.BlockedPatterns,
		},
		SystemCommands: CommandRules{
			MaxLength:       doc.ParameterRules.SystemCommands.MaxLength,
			BlockedPatterns: doc.ParameterRules.SystemCommands.BlockedPatterns,
		},
		FilePaths: PathRules{
			MaxLength:         doc.ParameterRules.FilePaths.MaxLength,
			BlockedPrefixes:   doc.ParameterRules.FilePaths.BlockedPrefixes,
			AllowedExtensions: doc.ParameterRules.FilePaths.AllowedExtensions,
		},
		URLs: URLRules{
			MaxLength:      doc.ParameterRules.URLs.MaxLength,
			AllowedSchemes: doc.ParameterRules.URLs.AllowedSchemes,
			BlockedDomains: doc.ParameterRules.URLs.BlockedDomains,
		},
		Applications: AppRules{
			Allowed: doc.ParameterRules.Applications.Allowed,
		},
	}

	for name, p := range doc.PIIPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			logger.Warn("pii pattern does not compile, skipping",
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		ps.PIIPatterns = append(ps.PIIPatterns, PIIPattern{
			Name:    name,
			Pattern: re,
			Mask:    p.Mask,
		})
	}

	for key, limit := range doc.RateLimits.ActionsPerMinute {
		if limit < 0 {
			logger.Warn("negative rate limit in policy, skipping",
				zap.String("key", key),
			)
			continue
		}
		ps.RateLimits[key] = limit
	}

	for tool, schemaDoc := range doc.ToolSchemas {
		sch, err := compileSchema(schemaDoc)
		if err != nil {
			logger.Warn("tool schema does not compile, skipping",
				zap.String("tool", tool),
				zap.Error(err),
			)
			continue
		}
		ps.ToolSchemas[tool] = sch
	}

	// Raw document kept for Lookup. YAML already decoded once, so a failure
	// here is unreachable in practice.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err == nil {
		ps.raw = raw
	}

	return ps, nil
}

// compileSchema round-trips the YAML-decoded schema through JSON so the
// compiler sees canonical types, then compiles it.
func compileSchema(schemaDoc map[string]any) (*jsonschema.Schema, error) {
	schemaBytes, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}
	var schemaObj any
	if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
