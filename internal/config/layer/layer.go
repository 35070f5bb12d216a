// Package layer assembles the standard configuration root for strata.
//
// A Root is a config.Composite with a fixed set of named layers:
//
//	runtime > remote > override > environment > application > libraries > defaults
//
// Application and library resources are located through loader.Resources
// and expanded by a cascade.Resolver, so loading "app" with env=prod also
// loads app-prod, ahead of app. Cascade variables are read through the
// root itself, which lets any layer (defaults included) select them.
package layer

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/strata/internal/config/cascade"
)

// DefaultDebounce is the quiet period before a changed file is reloaded.
const DefaultDebounce = 200 * time.Millisecond

// Options configures a Root.
type Options struct {
	// Dirs are the resource search directories, in lookup order.
	Dirs []string `validate:"dive,required"`

	// AppName is loaded as the application resource by New when set.
	AppName string `validate:"omitempty,excludesall=/"`

	// Variables are the cascade variable names, such as "env" or "${region}".
	Variables []string `validate:"dive,required"`

	// Separator joins cascade parts. Defaults to cascade.DefaultSeparator.
	Separator string `validate:"omitempty,max=4"`

	// Strategy names the cascade strategy: concat, suffix, cross or none.
	Strategy string `validate:"omitempty,oneof=concat suffix cross none"`

	// EnvPrefix selects the environment variables read into the
	// environment layer. The layer stays empty when no prefix is set.
	EnvPrefix string

	// EnvMapping maps variable names to configuration keys.
	EnvMapping map[string]string

	// Debounce is the watch quiet period. Defaults to DefaultDebounce.
	Debounce time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// Validate checks the options against their struct tags.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid layer options: %w", err)
	}
	return nil
}

// withDefaults returns a copy with zero values filled in.
func (o Options) withDefaults() Options {
	if o.Separator == "" {
		o.Separator = cascade.DefaultSeparator
	}
	if o.Strategy == "" {
		o.Strategy = "concat"
	}
	if o.Debounce == 0 {
		o.Debounce = DefaultDebounce
	}
	return o
}

// resolver builds the cascade resolver the options describe.
func (o Options) resolver() (*cascade.Resolver, error) {
	strategy, err := cascade.ByName(o.Strategy, o.Separator)
	if err != nil {
		return nil, err
	}
	return cascade.NewResolver(strategy, o.Variables...), nil
}
