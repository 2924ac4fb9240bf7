// Package config resolves run settings from defaults, an optional
// .policycov.yaml file, POLICYCOV_* environment variables and flags, in
// increasing order of precedence.
package config

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	errUtils "github.com/user/policycov/internal/errors"
	"github.com/user/policycov/internal/policy"
)

const (
	EnvPrefix  = "POLICYCOV"
	ConfigName = ".policycov"

	DefaultLogLevel = "info"
	DefaultRoot     = "."
)

// Viper keys
const (
	KeyResults        = "results"
	KeyCoverage       = "coverage"
	KeyOutput         = "output"
	KeyRoot           = "root"
	KeyThreshold      = "threshold"
	KeyVerbose        = "verbose"
	KeyLogLevel       = "log.level"
	KeyNoColor        = "no_color"
	KeyRootPackage    = "naming.root_package"
	KeyTestSuffix     = "naming.test_suffix"
	KeyPolicyRoot     = "naming.policy_root"
	KeyFallbackArea   = "naming.fallback_area"
	KeyTestFileSuffix = "naming.test_file_suffix"
)

// flagKeys maps flag names to the viper keys they override
var flagKeys = map[string]string{
	"results":   KeyResults,
	"coverage":  KeyCoverage,
	"output":    KeyOutput,
	"root":      KeyRoot,
	"threshold": KeyThreshold,
	"verbose":   KeyVerbose,
	"log-level": KeyLogLevel,
	"no-color":  KeyNoColor,
}

// Config is the resolved configuration of one run
type Config struct {
	Results   string
	Coverage  string
	Output    string
	Root      string
	Threshold *float64 // nil when unset
	Verbose   bool
	LogLevel  string
	NoColor   bool
	Naming    policy.Namer
	File      string // config file used, if any
}

// Namer returns the naming conventions of the run
func (c *Config) Namer() policy.Namer {
	return c.Naming
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	namer := policy.DefaultNamer()
	v.SetDefault(KeyRoot, DefaultRoot)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeyRootPackage, namer.RootPackage)
	v.SetDefault(KeyTestSuffix, namer.TestSuffix)
	v.SetDefault(KeyPolicyRoot, namer.PolicyRoot)
	v.SetDefault(KeyFallbackArea, namer.FallbackArea)
	v.SetDefault(KeyTestFileSuffix, namer.TestFileSuffix)
	return v
}

// BindFlags binds the known flags of fs to their viper keys. Flags that fs
// does not define are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}

// ReadFile reads an explicit config file, or .policycov.yaml from dir when
// path is empty. Only an explicit file is required to exist.
func ReadFile(v *viper.Viper, path, dir string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return errUtils.Build(errors.Wrap(err, "cannot read config file")).
			WithSentinel(errUtils.ErrInvalidConfig).
			WithHint("config files are YAML with keys such as threshold and naming.policy_root").
			WithExitCode(errUtils.ExitInvalidConfig).
			Err()
	}
	return nil
}

// Load resolves the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	threshold, err := ParseThreshold(v.Get(KeyThreshold))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Results:   v.GetString(KeyResults),
		Coverage:  v.GetString(KeyCoverage),
		Output:    v.GetString(KeyOutput),
		Root:      v.GetString(KeyRoot),
		Threshold: threshold,
		Verbose:   v.GetBool(KeyVerbose),
		LogLevel:  v.GetString(KeyLogLevel),
		NoColor:   v.GetBool(KeyNoColor),
		Naming: policy.Namer{
			RootPackage:    v.GetString(KeyRootPackage),
			TestSuffix:     v.GetString(KeyTestSuffix),
			PolicyRoot:     v.GetString(KeyPolicyRoot),
			FallbackArea:   v.GetString(KeyFallbackArea),
			TestFileSuffix: v.GetString(KeyTestFileSuffix),
		},
		File: v.ConfigFileUsed(),
	}
	if cfg.Naming.PolicyRoot == "" {
		return nil, errUtils.InvalidConfig("naming.policy_root must not be empty")
	}
	return cfg, nil
}

// ParseThreshold converts a raw flag, env or file value into a threshold.
// Empty values mean no threshold; anything outside [0, 100] is rejected.
func ParseThreshold(raw any) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			return nil, nil
		}
		raw = s
	}

	t, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, errUtils.InvalidConfig("threshold %v is not a number", raw)
	}
	if math.IsNaN(t) || t < 0 || t > 100 {
		return nil, errUtils.InvalidConfig("threshold %v must be between 0 and 100", raw)
	}
	return &t, nil
}
