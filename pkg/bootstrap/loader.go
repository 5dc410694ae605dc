package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

const logPrefix = "bootstrap:loader"

// SeedFileEnv names the environment variable consulted after explicit paths.
const SeedFileEnv = "OCPP_SEED_FILE"

var seedStationIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

var idTagStatuses = []string{"Accepted", "Blocked", "Expired", "Invalid", "ConcurrentTx"}

// LoadSeedConfig loads the seed file from the first readable path. It tries
// paths in order: explicit paths, then OCPP_SEED_FILE, then config/seed.toml
// and seed.toml. A file that exists but fails to parse or validate is an
// error. When no file is found an empty config is returned.
func LoadSeedConfig(paths ...string) (*SeedConfig, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(SeedFileEnv); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/seed.toml", "seed.toml")

	for _, p := range all {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		cfg, err := DecodeSeedFile(p)
		if err != nil {
			return nil, err
		}
		slog.Info(fmt.Sprintf("%s - Loaded seed config %q from %s (%d charge points, %d id tags)",
			logPrefix, cfg.Name, p, len(cfg.ChargePoints), len(cfg.IDTags)))
		return cfg, nil
	}

	slog.Info(fmt.Sprintf("%s - No seed file found, nothing to seed", logPrefix))
	return &SeedConfig{Name: "empty"}, nil
}

// DecodeSeedFile parses and validates a single TOML seed file.
func DecodeSeedFile(path string) (*SeedConfig, error) {
	var cfg SeedConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse seed file %s: %w", logPrefix, path, err)
	}
	for _, key := range meta.Undecoded() {
		slog.Warn(fmt.Sprintf("%s - ignoring unknown key %q in %s", logPrefix, key.String(), path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s - invalid seed file %s: %w", logPrefix, path, err)
	}
	return &cfg, nil
}

// Validate checks station ids, tag lengths and statuses, and rejects
// duplicates.
func (c *SeedConfig) Validate() error {
	var errs []error
	seenCP := make(map[string]bool, len(c.ChargePoints))
	for i, cp := range c.ChargePoints {
		switch {
		case !seedStationIDRegex.MatchString(cp.ID):
			errs = append(errs, fmt.Errorf("charge_points[%d]: invalid id %q", i, cp.ID))
		case seenCP[cp.ID]:
			errs = append(errs, fmt.Errorf("charge_points[%d]: duplicate id %q", i, cp.ID))
		}
		seenCP[cp.ID] = true
	}

	seenTag := make(map[string]bool, len(c.IDTags))
	for i, t := range c.IDTags {
		tag := strings.TrimSpace(t.IDTag)
		switch {
		case tag == "" || len(tag) > 20:
			errs = append(errs, fmt.Errorf("id_tags[%d]: id_tag must be 1-20 characters, got %q", i, t.IDTag))
		case seenTag[tag]:
			errs = append(errs, fmt.Errorf("id_tags[%d]: duplicate id_tag %q", i, tag))
		}
		seenTag[tag] = true
		if !slices.Contains(idTagStatuses, string(t.AuthorizationStatus())) {
			errs = append(errs, fmt.Errorf("id_tags[%d]: unknown status %q", i, t.Status))
		}
		if len(t.ParentIDTag) > 20 {
			errs = append(errs, fmt.Errorf("id_tags[%d]: parent_id_tag longer than 20 characters", i))
		}
	}
	return errors.Join(errs...)
}

// MergeSeedConfigs merges override into base. Entries with the same id or
// tag are replaced by the override.
func MergeSeedConfigs(base, override *SeedConfig) *SeedConfig {
	merged := &SeedConfig{Name: base.Name, Description: base.Description}
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Description != "" {
		merged.Description = override.Description
	}

	for _, cp := range base.ChargePoints {
		if _, ok := override.ChargePoint(cp.ID); !ok {
			merged.ChargePoints = append(merged.ChargePoints, cp)
		}
	}
	merged.ChargePoints = append(merged.ChargePoints, override.ChargePoints...)

	for _, t := range base.IDTags {
		if _, ok := override.IDTag(t.IDTag); !ok {
			merged.IDTags = append(merged.IDTags, t)
		}
	}
	merged.IDTags = append(merged.IDTags, override.IDTags...)
	return merged
}
