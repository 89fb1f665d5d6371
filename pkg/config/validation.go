package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for errors using the struct validate
// tags plus a few cross-field rules the tags cannot express.
//
// Validation does not mutate the config; normalization happens in
// ApplyDefaults.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			return fmt.Errorf("invalid configuration: %s", formatFieldErrors(verrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Cross-field rules.
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("invalid configuration: telemetry is enabled but no endpoint is set")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("invalid configuration: profiling is enabled but no endpoint is set")
	}
	if cfg.Catalog.Watch && !cfg.Catalog.Enabled {
		return fmt.Errorf("invalid configuration: catalog.watch requires catalog.enabled")
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// formatFieldErrors renders validator errors as "Field: rule" pairs, one per
// failed field, so the user sees every problem in one pass.
func formatFieldErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Strip the root struct name: "Config.Slots.Dir" reads better as
		// "Slots.Dir".
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", field, rule))
	}
	return strings.Join(msgs, "; ")
}
