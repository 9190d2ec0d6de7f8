// Package platform includes the CPU feature flags the code generators are tiered on.
package platform

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// CpuFeature is a single amd64 instruction set extension.
type CpuFeature uint64

const (
	// CpuFeatureAmd64SSE is the baseline vector extension.
	CpuFeatureAmd64SSE CpuFeature = 1 << iota
	// CpuFeatureAmd64SSE2 adds double precision and integer lane operations.
	CpuFeatureAmd64SSE2
	// CpuFeatureAmd64SSE3 is the third streaming SIMD extension.
	CpuFeatureAmd64SSE3
	// CpuFeatureAmd64SSE4_1 adds the rounding-mode instructions (ROUNDPS/ROUNDPD).
	CpuFeatureAmd64SSE4_1
	// CpuFeatureAmd64AVX is the VEX-encoded 256-bit floating point extension.
	CpuFeatureAmd64AVX
	// CpuFeatureAmd64AVX2 adds 256-bit integer lane operations.
	CpuFeatureAmd64AVX2
	// CpuFeatureAmd64FMA3 is the fused-multiply-add extension.
	CpuFeatureAmd64FMA3

	cpuFeatureEnd
)

var cpuFeatureNames = map[CpuFeature]string{
	CpuFeatureAmd64SSE:    "sse",
	CpuFeatureAmd64SSE2:   "sse2",
	CpuFeatureAmd64SSE3:   "sse3",
	CpuFeatureAmd64SSE4_1: "sse4.1",
	CpuFeatureAmd64AVX:    "avx",
	CpuFeatureAmd64AVX2:   "avx2",
	CpuFeatureAmd64FMA3:   "fma",
}

// String returns the lowercase name of the feature, e.g. "sse4.1".
func (f CpuFeature) String() string {
	if name, ok := cpuFeatureNames[f]; ok {
		return name
	}
	return "unknown"
}

// AllCpuFeatures lists every feature in ascending order.
func AllCpuFeatures() []CpuFeature {
	ret := make([]CpuFeature, 0, len(cpuFeatureNames))
	for f := CpuFeature(1); f < cpuFeatureEnd; f <<= 1 {
		ret = append(ret, f)
	}
	return ret
}

// CpuFeatureByName returns the feature named name, as returned by CpuFeature.String.
func CpuFeatureByName(name string) (CpuFeature, bool) {
	for f, n := range cpuFeatureNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// ParseCpuFeatureFlags reads a comma separated list of feature names such as
// "sse2,sse4.1,avx". Empty entries are skipped.
func ParseCpuFeatureFlags(list string) (CpuFeatureFlags, error) {
	var f CpuFeatureFlags
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		feature, ok := CpuFeatureByName(name)
		if !ok {
			return CpuFeatureFlags{}, fmt.Errorf("invalid cpu feature: %s", name)
		}
		f = f.With(feature)
	}
	return f, nil
}

// CpuFeatureFlags is an explicit set of CPU features. The zero value has no features.
type CpuFeatureFlags struct {
	flags uint64
}

// NewCpuFeatureFlags returns the set of the given features.
func NewCpuFeatureFlags(features ...CpuFeature) CpuFeatureFlags {
	var f CpuFeatureFlags
	for _, feature := range features {
		f.flags |= uint64(feature)
	}
	return f
}

// Has returns true when the feature is in the set.
func (f CpuFeatureFlags) Has(feature CpuFeature) bool {
	return f.flags&uint64(feature) != 0
}

// Raw returns the bits of the set.
func (f CpuFeatureFlags) Raw() uint64 {
	return f.flags
}

// With returns a copy of the set with the given features added.
func (f CpuFeatureFlags) With(features ...CpuFeature) CpuFeatureFlags {
	for _, feature := range features {
		f.flags |= uint64(feature)
	}
	return f
}

// Without returns a copy of the set with the given features removed.
func (f CpuFeatureFlags) Without(features ...CpuFeature) CpuFeatureFlags {
	for _, feature := range features {
		f.flags &^= uint64(feature)
	}
	return f
}

// String returns the feature names joined by commas, e.g. "sse,sse2,avx".
func (f CpuFeatureFlags) String() string {
	var names []string
	for _, feature := range AllCpuFeatures() {
		if f.Has(feature) {
			names = append(names, feature.String())
		}
	}
	return strings.Join(names, ",")
}

// HostCpuFeatures returns the features of the CPU this process runs on.
// On other architectures than amd64 the set is empty.
func HostCpuFeatures() CpuFeatureFlags {
	return hostCpuFeatures
}

var hostCpuFeatures = loadCpuFeatureFlags()

func loadCpuFeatureFlags() CpuFeatureFlags {
	if runtime.GOARCH != "amd64" {
		return CpuFeatureFlags{}
	}
	return x86Probe{
		sse2:  cpu.X86.HasSSE2,
		sse3:  cpu.X86.HasSSE3,
		sse41: cpu.X86.HasSSE41,
		avx:   cpu.X86.HasAVX,
		avx2:  cpu.X86.HasAVX2,
		fma:   cpu.X86.HasFMA,
	}.flags()
}

// x86Probe is the result of CPUID as reported by golang.org/x/sys/cpu.
// HasAVX there already accounts for the OS saving the YMM state.
type x86Probe struct {
	sse2, sse3, sse41, avx, avx2, fma bool
}

func (p x86Probe) flags() CpuFeatureFlags {
	var f CpuFeatureFlags
	if p.sse2 {
		// SSE2 implies SSE on every amd64 CPU.
		f = f.With(CpuFeatureAmd64SSE, CpuFeatureAmd64SSE2)
	}
	if p.sse3 {
		f = f.With(CpuFeatureAmd64SSE3)
	}
	if p.sse41 {
		f = f.With(CpuFeatureAmd64SSE4_1)
	}
	if p.avx {
		f = f.With(CpuFeatureAmd64AVX)
		// AVX2 and FMA3 are VEX-encoded, so they are unusable without AVX.
		if p.avx2 {
			f = f.With(CpuFeatureAmd64AVX2)
		}
		if p.fma {
			f = f.With(CpuFeatureAmd64FMA3)
		}
	}
	return f
}
