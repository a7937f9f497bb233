package collector

// Sample is one measured value together with its ordered label values.
// Labels is nil for unlabeled families.
type Sample struct {
	Labels []string
	Value  float64
}

// Family is one gauge metric family built during a single scrape. Families are
// rebuilt from scratch on every scrape and discarded after exposition; nothing
// is retained across scrapes.
type Family struct {
	Name    string
	Help    string
	Labels  []string
	Samples []Sample
}
