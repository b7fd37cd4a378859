package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/intake"
)

// loadFormConfig picks the engine's form configuration: FORM_CONFIG_PATH if
// set, else the active stored version of FORM_NAME, else the built-in
// patient record. The returned string names the source for logging.
func loadFormConfig(ctx context.Context, cfg *config.Config, forms intake.FormRepository) (*intake.FormConfig, string, error) {
	if cfg.FormConfigPath != "" {
		fc, err := intake.LoadFormConfigFile(cfg.FormConfigPath)
		return fc, "file:" + cfg.FormConfigPath, err
	}
	if forms != nil {
		fc, f, err := intake.ActiveConfig(ctx, forms, cfg.FormName)
		switch {
		case err == nil:
			return fc, fmt.Sprintf("db:%s@v%d", f.Name, f.Version), nil
		case !errors.Is(err, intake.ErrFormNotFound):
			return nil, "", err
		}
	}
	fc, err := intake.DefaultFormConfig()
	return fc, "builtin", err
}
