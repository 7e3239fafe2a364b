package speech

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed assets.yaml
var assetsYAML []byte

// LocaleAssets holds the speech tuning for one language.
type LocaleAssets struct {
	LeadIn        string   `yaml:"lead_in"`
	PauseKeywords []string `yaml:"pause_keywords"`
	CuratedVoices []string `yaml:"curated_voices"`
}

type assetFile struct {
	Locales map[string]LocaleAssets `yaml:"locales"`
}

// LoadAssets parses the embedded per-language speech assets, keyed by
// language code.
func LoadAssets() (map[string]LocaleAssets, error) {
	var f assetFile
	if err := yaml.Unmarshal(assetsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse speech assets: %w", err)
	}
	if len(f.Locales) == 0 {
		return nil, fmt.Errorf("speech assets: no locales defined")
	}
	return f.Locales, nil
}
