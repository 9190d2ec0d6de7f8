// Package features implements a feature flagging mechanism for exprjit.
//
// Features are intended to control properties of the code that can only be
// enabled globally. Each supported feature masks a CPU feature off the host
// flags, so that lower instruction set tiers can be exercised on a capable
// machine.
package features

import (
	"os"
	"strings"
	"sync"

	"github.com/exprjit/exprjit/internal/platform"
)

const (
	// EnvVarName is the name of the environment variable which contains the
	// list of feature flags.
	EnvVarName = "EXPRJITFEATURES"
)

// masks lists the CPU features each supported feature removes.
var masks = map[string][]platform.CpuFeature{
	// AVX2 and FMA3 are VEX-encoded, so they go away with AVX.
	"noavx":    {platform.CpuFeatureAmd64AVX, platform.CpuFeatureAmd64AVX2, platform.CpuFeatureAmd64FMA3},
	"noavx2":   {platform.CpuFeatureAmd64AVX2},
	"nofma":    {platform.CpuFeatureAmd64FMA3},
	"nosse3":   {platform.CpuFeatureAmd64SSE3},
	"nosse4.1": {platform.CpuFeatureAmd64SSE4_1},
}

var (
	lock sync.RWMutex
	list []string
)

func init() {
	EnableFromEnvironment()
}

// EnableFromEnvironment extracts the list of exprjit features enabled from the
// EXPRJITFEATURES environment variable.
func EnableFromEnvironment() {
	features := os.Getenv(EnvVarName)
	Enable(strings.Split(features, ",")...)
}

// Enable the list of features passed as arguments.
//
// The function is idempotent and atomic, features that are already present are
// skipped.
//
// Unrecognized features are ignored.
func Enable(features ...string) {
	lock.Lock()
	defer lock.Unlock()

	enabled := list

	for _, f := range features {
		f = strings.TrimSpace(f)
		if supported(f) && !have(enabled, f) {
			enabled = append(enabled, f)
		}
	}

	list = enabled
}

// List returns the current list of features enabled on exprjit.
//
// The program must treat the returned slice as read-only.
func List() []string {
	lock.RLock()
	defer lock.RUnlock()
	return list
}

// Have returns true if the given feature is enabled.
func Have(feature string) bool {
	lock.RLock()
	features := list
	lock.RUnlock()
	return have(features, feature)
}

// Mask returns flags without the CPU features the enabled features remove.
func Mask(flags platform.CpuFeatureFlags) platform.CpuFeatureFlags {
	lock.RLock()
	features := list
	lock.RUnlock()
	return mask(flags, features)
}

func mask(flags platform.CpuFeatureFlags, features []string) platform.CpuFeatureFlags {
	for _, f := range features {
		flags = flags.Without(masks[f]...)
	}
	return flags
}

func have(list []string, feature string) bool {
	for _, f := range list {
		if f == feature {
			return true
		}
	}
	return false
}

func supported(feature string) bool {
	_, ok := masks[feature]
	return ok
}
