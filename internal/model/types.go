package model

import "time"

// Protocol is the scheme a ServiceDefinition's resource must use.
type Protocol string

const (
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
)

// Method is the HTTP method a probe issues.
type Method string

const (
	MethodGET  Method = "GET"
	MethodHEAD Method = "HEAD"
	MethodPOST Method = "POST"
)

// Header is a single request header to attach to a probe, or an expected
// response header to validate against.
type Header struct {
	Name  string `koanf:"name"`
	Value string `koanf:"value"`
}

// Expected is the validation block a probe's response must satisfy.
type Expected struct {
	// Status is the single HTTP status code the response must match.
	Status int `koanf:"status"`
	// Text, if non-empty, must appear verbatim in the bounded response body.
	Text string `koanf:"text"`
	// Headers, if non-empty, is a name->value map; each named response
	// header must match its value exactly (case-insensitive name, exact
	// value). Response headers not named here are not checked.
	Headers map[string]string `koanf:"headers"`
}

// ServiceDefinition is the static, validated contract for one monitored
// endpoint. It never changes once loaded; the mutable half lives in
// ServiceRuntime.
type ServiceDefinition struct {
	Name     string   `koanf:"name"`
	Protocol Protocol `koanf:"protocol"`
	Method   Method   `koanf:"method"`
	Resource string   `koanf:"resource"`
	Tags     []string `koanf:"tags"`

	Expected Expected `koanf:"expected"`
	Headers  []Header `koanf:"headers"`

	// Payload, when set, is serialized as the JSON request body. Only
	// valid when Method is POST.
	Payload any `koanf:"payload"`

	// Per-service overrides of the global defaults. Zero means "use the
	// effective global value" (see EffectiveX helpers).
	Interval         time.Duration `koanf:"interval"`
	WarningThreshold time.Duration `koanf:"warning_threshold"`
	Timeout          time.Duration `koanf:"timeout"`

	// Description is a free-text operator note accepted by the loader and
	// kept on the definition; its length is not validated and the
	// snapshot does not include it.
	Description string `koanf:"description"`
}

// EffectiveInterval returns the service's own interval override, or the
// global default when unset.
func (s ServiceDefinition) EffectiveInterval(global time.Duration) time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return global
}

// EffectiveWarningThreshold returns the service's own threshold override,
// or the global default when unset.
func (s ServiceDefinition) EffectiveWarningThreshold(global time.Duration) time.Duration {
	if s.WarningThreshold > 0 {
		return s.WarningThreshold
	}
	return global
}

// EffectiveTimeout returns the service's own timeout override, or the
// global default when unset.
func (s ServiceDefinition) EffectiveTimeout(global time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return global
}

// GlobalSettings are the configuration defaults and process-wide knobs
// from the `settings` block of the configuration document.
type GlobalSettings struct {
	CheckInterval    time.Duration `koanf:"check_interval"`
	WarningThreshold time.Duration `koanf:"warning_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
	PageRefresh      time.Duration `koanf:"page_refresh"`
	MaxRetries       int           `koanf:"max_retries"`
	WorkerPoolSize   int           `koanf:"worker_pool_size"`
	HistoryFile      string        `koanf:"history_file"`
	OutputDir        string        `koanf:"output_dir"`

	// MetricsAddr/MetricsPath configure the pull metrics endpoint; the
	// distilled spec requires the endpoint (§6) without naming the
	// settings that bind it.
	MetricsAddr string `koanf:"metrics_addr"`
	MetricsPath string `koanf:"metrics_path"`

	// Tracing controls the optional OpenTelemetry span emission.
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// ServiceRuntime is the mutable per-service state the Orchestrator owns.
// It is created in PENDING at configuration load and destroyed with the
// process; nothing but the Orchestrator mutates it.
type ServiceRuntime struct {
	CurrentStatus        Status
	LastCheckTime        *time.Time
	LastLatencyMs        *int64
	ConsecutiveFailures  int
	LastHTTPStatus       *int
	LastFailureReason    string
	LastStatusChangeTime *time.Time
}

// NewServiceRuntime returns the initial PENDING state for a freshly loaded
// service.
func NewServiceRuntime() *ServiceRuntime {
	return &ServiceRuntime{CurrentStatus: StatusPending}
}

// Down applies the flap-suppression rule: a service is visually DOWN
// only once its internal status is FAIL for at least two consecutive
// probes, even though CurrentStatus already reflects the latest verdict.
func (r *ServiceRuntime) Down() bool {
	return r.CurrentStatus == StatusFail && r.ConsecutiveFailures >= 2
}

// HealthCheckResult is the immutable outcome of one probe cycle
// (possibly after several retried attempts — only the final attempt is
// ever materialized as a Result).
type HealthCheckResult struct {
	ServiceName            string
	Timestamp              time.Time
	Method                 Method
	Status                 Status
	LatencyMs              int64
	HTTPStatusCode         int
	ExpectedStatus         int
	TextValidationResult   *bool
	HeaderValidationResult map[string]bool
	FailureReason          string
	CorrelationID          string
}
