package dieseltri

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// safeString NUL-terminates s for the Vulkan C side. Already terminated
// strings are returned unchanged.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, safeString(s))
	}
	return out
}

// trimString strips the terminator added by safeString.
func trimString(s string) string {
	return strings.TrimRight(s, "\x00")
}

// checkExisting returns the entries of required present in actual, in
// the order of required, and the number that were missing.
func checkExisting(actual, required []string) (existing []string, missing int) {
	have := make(map[string]struct{}, len(actual))
	for _, name := range actual {
		have[trimString(name)] = struct{}{}
	}
	for _, name := range required {
		if _, ok := have[trimString(name)]; ok {
			existing = append(existing, name)
		} else {
			missing++
		}
	}
	return existing, missing
}

func clamp(val, min, max uint32) uint32 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

const spirvMagic = 0x07230203

// sliceUint32 converts SPIR-V bytecode into the word slice Vulkan expects.
func sliceUint32(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Errorf("spir-v bytecode length %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Errorf("spir-v magic mismatch: %#08x", words[0])
	}
	return words, nil
}
