// pkg/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/healthwatch/healthwatch/internal/model"
	"github.com/healthwatch/healthwatch/pkg/apperror"
)

// Config is the fully loaded, validated configuration document: the
// `settings` defaults block plus the `pings` list of monitored services.
type Config struct {
	Settings model.GlobalSettings      `koanf:"settings"`
	Pings    []model.ServiceDefinition `koanf:"pings"`
}

const (
	maxNameLength = 100
	maxTagLength  = 100
)

var (
	validProtocols = map[model.Protocol]bool{model.ProtocolHTTP: true, model.ProtocolHTTPS: true}
	validMethods   = map[model.Method]bool{model.MethodGET: true, model.MethodHEAD: true, model.MethodPOST: true}
)

// Validate runs both validation phases and returns a *apperror.ValidationErrors
// aggregating every violation found; it never short-circuits on the
// first error. A nil return means cfg is valid.
func (c *Config) Validate() error {
	ve := apperror.NewValidationErrors()

	c.validateStructural(ve)
	c.validateCrossField(ve)

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// validateStructural is phase A: type/enum/range/required-field checks
// against the schema, independent of any other field.
func (c *Config) validateStructural(ve *apperror.ValidationErrors) {
	s := &c.Settings

	if s.CheckInterval < 0 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be >= 10s", "settings.check_interval")
	} else if s.CheckInterval != 0 && s.CheckInterval.Seconds() < 10 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be >= 10s", "settings.check_interval")
	}
	if s.WarningThreshold < 0 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be >= 0s", "settings.warning_threshold")
	}
	if s.Timeout != 0 && s.Timeout.Seconds() < 1 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be >= 1s", "settings.timeout")
	}
	if s.PageRefresh != 0 && s.PageRefresh.Seconds() < 5 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be >= 5s", "settings.page_refresh")
	}
	if s.MaxRetries < 0 || s.MaxRetries > 10 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be between 0 and 10", "settings.max_retries")
	}
	if s.WorkerPoolSize < 0 || s.WorkerPoolSize > 100 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be between 0 and 100", "settings.worker_pool_size")
	}

	if len(c.Pings) == 0 {
		ve.AddErrorWithField(apperror.CodeRequired, "at least one service must be configured", "pings")
	}

	for i, svc := range c.Pings {
		field := fmt.Sprintf("pings[%d:%s]", i, svc.Name)
		validateService(ve, field, svc)
	}
}

func validateService(ve *apperror.ValidationErrors, field string, svc model.ServiceDefinition) {
	if svc.Name == "" {
		ve.AddErrorWithField(apperror.CodeRequired, "name is required", field+".name")
	} else if len(svc.Name) > maxNameLength {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be <= 100 characters", field+".name")
	} else if !isASCII(svc.Name) {
		ve.AddErrorWithField(apperror.CodeInvalidFormat, "must be ASCII", field+".name")
	}

	if !validProtocols[svc.Protocol] {
		ve.AddErrorWithField(apperror.CodeInvalidEnum, "must be HTTP or HTTPS", field+".protocol")
	}
	if !validMethods[svc.Method] {
		ve.AddErrorWithField(apperror.CodeInvalidEnum, "must be GET, HEAD, or POST", field+".method")
	}

	u, err := url.Parse(svc.Resource)
	if err != nil || !u.IsAbs() {
		ve.AddErrorWithField(apperror.CodeInvalidFormat, "must be an absolute URL", field+".resource")
	}

	for _, tag := range svc.Tags {
		if len(tag) > maxTagLength || !isASCII(tag) {
			ve.AddErrorWithField(apperror.CodeInvalidFormat, "tags must be ASCII and <= 100 characters", field+".tags")
			break
		}
	}

	if svc.Expected.Status < 100 || svc.Expected.Status > 599 {
		ve.AddErrorWithField(apperror.CodeInvalidRange, "must be between 100 and 599", field+".expected.status")
	}
}

// validateCrossField is phase B: invariants spanning more than one
// field, including uniqueness across the whole document.
func (c *Config) validateCrossField(ve *apperror.ValidationErrors) {
	seen := make(map[string]bool, len(c.Pings))

	for i, svc := range c.Pings {
		field := fmt.Sprintf("pings[%d:%s]", i, svc.Name)

		if svc.Name != "" {
			if seen[svc.Name] {
				ve.AddErrorWithField(apperror.CodeDuplicate, "duplicate service name", field+".name")
			}
			seen[svc.Name] = true
		}

		if svc.Payload != nil && svc.Method != model.MethodPOST {
			ve.AddErrorWithField(apperror.CodeCrossField, "payload is only valid when method is POST", field+".payload")
		}

		if u, err := url.Parse(svc.Resource); err == nil && u.IsAbs() {
			if !strings.EqualFold(u.Scheme, string(svc.Protocol)) {
				ve.AddErrorWithField(apperror.CodeSchemeMismatch, "resource scheme must match protocol", field+".resource")
			}
		}

		warning := svc.EffectiveWarningThreshold(c.Settings.WarningThreshold)
		timeout := svc.EffectiveTimeout(c.Settings.Timeout)
		if warning >= timeout {
			ve.AddErrorWithField(apperror.CodeCrossField, "effective warning_threshold must be less than effective timeout", field)
		}
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
