package resolver

// knownAliases maps canonical normalized names to spellings that resolve
// to them ahead of any similarity scoring. Entries are compared literally
// against the normalized input.
var knownAliases = map[string][]string{
	"nvidia":    {"nvidia corp", "nvidia corporation", "nvidia inc"},
	"meta":      {"meta platforms", "facebook", "meta inc"},
	"google":    {"alphabet", "google inc", "google llc", "alphabet inc"},
	"amazon":    {"amazon inc", "amazon.com", "amazon web services", "aws"},
	"microsoft": {"microsoft corp", "microsoft corporation", "msft"},
	"apple":     {"apple inc", "apple computer"},
	"openai":    {"open ai", "openai inc"},
	"anthropic": {"anthropic ai", "anthropic inc"},
}

// runCache memoizes name normalization and canonical lookups for one
// resolution pass. Every run builds a fresh cache and hands it through
// the calls; nothing here is shared across runs.
type runCache struct {
	normalized map[string]string
	canonical  map[string]string
}

func newRunCache() *runCache {
	return &runCache{
		normalized: make(map[string]string),
		canonical:  make(map[string]string),
	}
}

func (c *runCache) normalize(name string) string {
	if n, ok := c.normalized[name]; ok {
		return n
	}
	n := NormalizeName(name)
	c.normalized[name] = n
	return n
}

// canonicalFor returns the known-alias canonical for a name, or "" when
// the name is not a known spelling of anything.
func (c *runCache) canonicalFor(name string) string {
	normalized := c.normalize(name)
	if canon, ok := c.canonical[normalized]; ok {
		return canon
	}

	found := ""
	for canonical, aliases := range knownAliases {
		if normalized == canonical {
			found = canonical
			break
		}
		for _, alias := range aliases {
			if normalized == alias {
				found = canonical
				break
			}
		}
		if found != "" {
			break
		}
	}
	c.canonical[normalized] = found
	return found
}
