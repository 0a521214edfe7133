package cmd

import (
	"fmt"

	"github.com/sentinel-intercept/proxy/internal/config"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

// openRulesStore resolves the Config Store's JSON document path (CLI
// --state flag, else the loaded config's rules.path) and opens it.
func openRulesStore() (*rules.Store, error) {
	path := stateFilePath
	if path == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Rules.Path
	}
	return rules.NewStore(path)
}
