package dieseltri

// ExtensionSet tracks the extensions (or layers) that are wanted, the ones
// that are required and the ones the implementation actually offers.
type ExtensionSet struct {
	wanted   []string
	required []string
	actual   []string
}

func NewExtensionSet(wanted, required, actual []string) *ExtensionSet {
	return &ExtensionSet{wanted: wanted, required: required, actual: actual}
}

func (e *ExtensionSet) missing(list []string) []string {
	have := make(map[string]struct{}, len(e.actual))
	for _, name := range e.actual {
		have[trimString(name)] = struct{}{}
	}
	var out []string
	for _, name := range list {
		if _, ok := have[trimString(name)]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// HasRequired reports whether every required entry is available, and
// which ones are not.
func (e *ExtensionSet) HasRequired() (bool, []string) {
	missing := e.missing(e.required)
	return len(missing) == 0, missing
}

// HasWanted is HasRequired for the optional entries.
func (e *ExtensionSet) HasWanted() (bool, []string) {
	missing := e.missing(e.wanted)
	return len(missing) == 0, missing
}

// Enabled returns the entries to enable: all required ones followed by the
// available wanted ones, without duplicates.
func (e *ExtensionSet) Enabled() []string {
	seen := make(map[string]struct{}, len(e.required)+len(e.wanted))
	var out []string
	add := func(name string) {
		key := trimString(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	for _, name := range e.required {
		add(name)
	}
	available, _ := checkExisting(e.actual, e.wanted)
	for _, name := range available {
		add(name)
	}
	return out
}
