package llm

// Options carries decoding hints (e.g. "num_gpu", "num_thread") that are
// forwarded to the server without interpretation.
type Options map[string]any

// Clone returns a shallow copy so callers can't mutate a request after it is built.
func (o Options) Clone() Options {
	if len(o) == 0 {
		return nil
	}

	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}
