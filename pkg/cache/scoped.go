package cache

// ScopedKeyer wraps a Keyer with a prefix so independent deployments or
// users sharing one backend get separate namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SearchKey generates a prefixed key for search result caching.
func (k *ScopedKeyer) SearchKey(fingerprint string, opts SearchKeyOpts) string {
	return k.prefix + k.inner.SearchKey(fingerprint, opts)
}

// RenderKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) RenderKey(newick string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(newick, opts)
}
