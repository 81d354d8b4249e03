package config

// TargetsFile is the shape of one watch target seed file.
type TargetsFile struct {
	Targets []TargetConfig `yaml:"targets"`
}

// TargetConfig is one declared watch target. Exactly one of ExternalID,
// Symbol, or Keyword must be set, matching Type.
type TargetConfig struct {
	Platform    string `yaml:"platform"`
	Type        string `yaml:"type"`
	ExternalID  string `yaml:"external_id,omitempty"`
	Symbol      string `yaml:"symbol,omitempty"`
	Keyword     string `yaml:"keyword,omitempty"`
	DisplayName string `yaml:"display_name,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}
