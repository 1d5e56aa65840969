package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Loader resolves configuration keys from the environment. A key such as
// "database.url" is read from PREFIX_DATABASE_URL, and from any extra names
// registered with Bind.
type Loader struct {
	v *viper.Viper
}

func NewLoader(prefix string) *Loader {
	v := viper.New()
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		v.SetEnvPrefix(prefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Bind registers additional environment variable names for key. The prefixed
// name always takes precedence.
func (l *Loader) Bind(key string, envNames ...string) {
	names := []string{l.envName(key)}
	names = append(names, envNames...)
	_ = l.v.BindEnv(append([]string{key}, names...)...)
}

func (l *Loader) envName(key string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if p := l.v.GetEnvPrefix(); p != "" {
		return strings.ToUpper(p) + "_" + name
	}
	return name
}

func (l *Loader) String(key, fallback string) string {
	v := strings.TrimSpace(l.v.GetString(key))
	if v == "" {
		return fallback
	}
	return v
}

func (l *Loader) RequiredString(key string) (string, error) {
	v := strings.TrimSpace(l.v.GetString(key))
	if v == "" {
		return "", fmt.Errorf("%s is required", l.envName(key))
	}
	return v, nil
}

func (l *Loader) Port(key, fallback string) (string, error) {
	v := l.String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", l.envName(key), v)
	}
	return v, nil
}

func (l *Loader) Int(key string, fallback int) (int, error) {
	raw := l.String(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", l.envName(key), raw)
	}
	return n, nil
}

func (l *Loader) Bool(key string, fallback bool) bool {
	raw := strings.ToLower(l.String(key, ""))
	switch raw {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (l *Loader) Duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := l.String(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (got %q)", l.envName(key), raw)
	}
	return d, nil
}

// List splits a comma separated value, dropping empty entries.
func (l *Loader) List(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(l.String(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
