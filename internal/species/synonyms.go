package species

// synonyms maps outdated binomials to the currently accepted name NCBI indexes
// under. Substitution applies only when building lookup queries; cache keys
// and output rows always use the original normalized name.
var synonyms = map[string]string{
	"Acholeplasma modicum":    "Haploplasma modicum",
	"Propionibacterium acnes": "Cutibacterium acnes",
	"Clostridium difficile":   "Clostridioides difficile",
}

// Preferred returns the lookup name for a normalized species name, applying
// the synonym table when an entry exists.
func Preferred(name string) string {
	if preferred, ok := synonyms[name]; ok {
		return preferred
	}
	return name
}
