// Package config loads the engine configuration from defaults, the embedded YAML,
// an optional external YAML file, a .env file and environment variables, in that order.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

const moduleName = "config"

// Overrides are command-line values applied after every other source.
type Overrides struct {
	LogLevel        string
	MetricsTextfile string
	MetricsAddress  string
}

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	Expander       EnvironmentExpander
	EnvFilePath    string     `name:"envFilePath" optional:"true"`
	ConfigFilePath string     `name:"configFilePath" optional:"true"`
	Overrides      *Overrides `optional:"true"`
}

func loadConfig(envFilePath, configFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	sources := []struct {
		name string
		data []byte
	}{{name: "embedded config", data: embeddedConfig}}
	if configFilePath != "" {
		data, err := os.ReadFile(configFilePath)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to read config file "+configFilePath, err, false, false)
		}
		sources = append(sources, struct {
			name string
			data []byte
		}{name: configFilePath, data: data})
	}

	for _, src := range sources {
		if len(src.data) == 0 {
			continue
		}
		expanded, err := expander.Expand(src.data)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to expand "+src.name, err, false, false)
		}
		var yamlConfig Config
		if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal "+src.name, err, false, false)
		}
		mergeStruct(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(&yamlConfig).Elem())
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration without fx. It is used by tools and tests.
func LoadConfig(envFilePath, configFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, configFilePath, embeddedConfig, nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, overrides and validates *Config,
// then configures the process logger from it.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.ConfigFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	cfg.Apply(params.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Configure(cfg.Congresso.System.Logging.Format, cfg.Congresso.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Congresso.System.Logging.Level)
	return cfg, nil
}

// Apply copies non-empty overrides into the configuration.
func (c *Config) Apply(o *Overrides) {
	if o == nil {
		return
	}
	if o.LogLevel != "" {
		c.Congresso.System.Logging.Level = o.LogLevel
	}
	if o.MetricsTextfile != "" {
		c.Congresso.Metrics.Enabled = true
		c.Congresso.Metrics.TextfilePath = o.MetricsTextfile
	}
	if o.MetricsAddress != "" {
		c.Congresso.Metrics.Enabled = true
		c.Congresso.Metrics.ListenAddress = o.MetricsAddress
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	cc := c.Congresso
	for name, api := range map[string]APIFamilyConfig{"senado": cc.API.Senado, "camara": cc.API.Camara} {
		if api.BaseURL == "" {
			return exception.NewValidationError(moduleName, "api."+name+".base_url is empty", "set CONGRESSO_API_"+strings.ToUpper(name)+"_BASE_URL")
		}
		if api.PageSize <= 0 || api.Retry.MaxAttempts <= 0 || api.TimeoutSeconds <= 0 {
			return exception.NewValidationError(moduleName, "api."+name+" page_size, retry.max_attempts and timeout_seconds must be positive", "")
		}
	}
	if cc.Batch.MaxPages <= 0 || cc.Batch.IncrementalMaxPages <= 0 || cc.Batch.ChunkSize <= 0 {
		return exception.NewValidationError(moduleName, "batch.max_pages, batch.incremental_max_pages and batch.chunk_size must be positive", "")
	}
	if cc.Writer.MaxOperations <= 0 || cc.Writer.MaxDocumentBytes <= 0 || cc.Writer.CommitTimeoutSeconds <= 0 {
		return exception.NewValidationError(moduleName, "writer ceilings must be positive", "")
	}
	if _, ok := cc.Destinations.AdapterFor(cc.Batch.DefaultDestination); !ok {
		return exception.NewValidationError(moduleName, "unknown default destination "+strconv.Quote(cc.Batch.DefaultDestination),
			"use primary-store, emulated-store or local-filesystem")
	}
	for _, name := range cc.Batch.ItemSkip.SkippableExceptions {
		if !exception.IsErrorTypeRegistered(name) {
			return exception.NewValidationError(moduleName, "item_skip references unknown exception class "+strconv.Quote(name), "")
		}
	}
	switch cc.Tracing.Exporter {
	case "", "none", "otlp-http", "otlp-grpc":
	default:
		return exception.NewValidationError(moduleName, "unknown tracing exporter "+strconv.Quote(cc.Tracing.Exporter), "use none, otlp-http or otlp-grpc")
	}
	return nil
}

// mergeStruct copies every non-zero field of src into dst. Maps are merged key by key.
func mergeStruct(dst, src reflect.Value) {
	for i := 0; i < src.NumField(); i++ {
		sf, df := src.Field(i), dst.Field(i)
		if !df.CanSet() {
			continue
		}
		switch sf.Kind() {
		case reflect.Struct:
			mergeStruct(df, sf)
		case reflect.Map:
			if sf.IsNil() {
				continue
			}
			if df.IsNil() {
				df.Set(reflect.MakeMap(df.Type()))
			}
			iter := sf.MapRange()
			for iter.Next() {
				df.SetMapIndex(iter.Key(), iter.Value())
			}
		default:
			if !sf.IsZero() {
				df.Set(sf)
			}
		}
	}
}

// loadStructFromEnv recursively loads configuration values from environment variables
// named after the upper-cased yaml tag path (e.g. CONGRESSO_WRITER_MAX_OPERATIONS).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch {
		case field.Kind() == reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface:
			loadAdapterMapFromEnv(field, envVarName+"_")
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return errors.Wrapf(err, "failed to set field '%s' from env var '%s'", fieldType.Name, envVarName)
		}
	}
	return nil
}

// loadAdapterMapFromEnv overrides scalar adapter properties, e.g.
// CONGRESSO_ADAPTER_PRIMARY_PASSWORD=secret sets adapter["primary"]["password"].
// Only adapters already declared in YAML are touched.
func loadAdapterMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		return
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		for _, key := range mapField.MapKeys() {
			name := strings.ToUpper(key.String()) + "_"
			if !strings.HasPrefix(parts[0], name) {
				continue
			}
			props, ok := mapField.MapIndex(key).Interface().(map[string]interface{})
			if !ok {
				continue
			}
			props[strings.ToLower(strings.TrimPrefix(parts[0], name))] = parts[1]
		}
	}
}

// setField sets a string, integer, float or bool field from its string form.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			items := strings.Split(value, ",")
			for i := range items {
				items[i] = strings.TrimSpace(items[i])
			}
			field.Set(reflect.ValueOf(items))
		}
	}
	return nil
}
