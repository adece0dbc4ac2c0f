package normalize

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithAliases adds vendor column aliases. Keys are folded the same way as
// incoming column names; values must be canonical field names.
func WithAliases(aliases map[string]string) Option {
	return func(n *Normalizer) {
		for k, v := range aliases {
			n.aliases[columnKey(k)] = v
		}
	}
}

// WithTimeLayouts adds timestamp layouts tried before the defaults.
func WithTimeLayouts(layouts ...string) Option {
	return func(n *Normalizer) {
		if len(layouts) == 0 {
			return
		}
		n.layouts = append(append([]string(nil), layouts...), n.layouts...)
	}
}
