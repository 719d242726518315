package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv returns the trimmed value of key. Blank counts as unset so an
// empty line in .env falls back to the default.
func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// envValue reads key with parse and falls back to def when the variable
// is unset or does not parse.
func envValue[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := lookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// GetEnvOrDefault returns the trimmed value of key, or defaultValue.
func GetEnvOrDefault(key, defaultValue string) string {
	return envValue(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseIntEnv reads key as a base-10 int.
func ParseIntEnv(key string, defaultValue int) int {
	return envValue(key, defaultValue, strconv.Atoi)
}

// ParseUint64Env reads key as an unsigned 64-bit integer; seeds use it.
func ParseUint64Env(key string, defaultValue uint64) uint64 {
	return envValue(key, defaultValue, func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
}

// ParseFloat64Env reads key as a float64.
func ParseFloat64Env(key string, defaultValue float64) float64 {
	return envValue(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBoolEnv reads key as a switch. true/1/yes/on and false/0/no/off
// are accepted in any case; anything else keeps defaultValue.
func ParseBoolEnv(key string, defaultValue bool) bool {
	return envValue(key, defaultValue, parseSwitch)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// ParseDurationEnv reads key as whole seconds ("600") or a Go duration
// ("10m", "90s").
func ParseDurationEnv(key string, defaultSeconds int) time.Duration {
	return envValue(key, time.Duration(defaultSeconds)*time.Second, func(s string) (time.Duration, error) {
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return time.ParseDuration(s)
	})
}
