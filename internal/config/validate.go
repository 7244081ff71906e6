package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// ErrInvalid is returned when the configuration fails validation. The
// individual problems are logged as they are found.
var ErrInvalid = errors.New("invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration against its schema, then the
// dependencies between values.
func Validate(cfg *Config) error {
	invalid := false

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating configuration: %w", err)
		}

		for _, e := range verrs {
			log.Printf("[VALIDATE] %s", describe(e))
		}

		invalid = true
	}

	var values StringValidator

	if cfg.Index.Type == "solr" {
		values.SetPrefix("index: ")
		values.RequireValue(cfg.Index.Solr.Host, "solr host")
		values.RequireValue(cfg.Index.Solr.Core, "solr core")
		values.RequireValue(cfg.Index.Solr.Handler, "solr handler")
		values.RequireValue(cfg.Index.Solr.QF, "solr qf")
	}

	if cfg.Logging.Handler == "syslog" {
		values.SetPrefix("logging: ")
		values.RequireValue(cfg.Logging.Address, "syslog address")
	}

	for _, pattern := range []string{cfg.Composer.ChildIncludeRE, cfg.Composer.ChildExcludeRE} {
		if _, err := regexp.Compile(pattern); err != nil {
			log.Printf("[VALIDATE] composer: bad child pattern [%s]: %s", pattern, err.Error())
			invalid = true
		}
	}

	if cfg.Zotero.End > 0 && cfg.Zotero.End <= cfg.Zotero.Start {
		log.Printf("[VALIDATE] zotero: end (%d) must be greater than start (%d)", cfg.Zotero.End, cfg.Zotero.Start)
		invalid = true
	}

	if invalid || values.Invalid() {
		log.Printf("[VALIDATE] configuration has missing/incorrect value(s), see above")
		return ErrInvalid
	}

	return nil
}

func describe(e validator.FieldError) string {
	key := strings.TrimPrefix(e.Namespace(), "Config.")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("missing %s", key)
	case "oneof":
		return fmt.Sprintf("value %q for %s not recognized, only support %q", e.Value(), key, e.Param())
	case "gte":
		return fmt.Sprintf("%s cannot be less than %s", key, e.Param())
	case "lte":
		return fmt.Sprintf("%s cannot be more than %s", key, e.Param())
	default:
		return fmt.Sprintf("%s failed %s check (value %v)", key, e.Tag(), e.Value())
	}
}

// StringValidator collects values, logging each missing required one.
type StringValidator struct {
	values  []string
	invalid bool
	prefix  string
}

// SetPrefix sets the text logged ahead of each missing value.
func (v *StringValidator) SetPrefix(prefix string) {
	v.prefix = prefix
}

// AddValue records an optional value; empty values are ignored.
func (v *StringValidator) AddValue(value string) {
	if value != "" {
		v.values = append(v.values, value)
	}
}

// RequireValue records value, or flags the validator invalid if it is
// empty.
func (v *StringValidator) RequireValue(value string, label string) {
	if value == "" {
		log.Printf("[VALIDATE] %smissing %s", v.prefix, label)
		v.invalid = true
		return
	}

	v.values = append(v.values, value)
}

func (v *StringValidator) Values() []string {
	return v.values
}

func (v *StringValidator) Invalid() bool {
	return v.invalid
}
