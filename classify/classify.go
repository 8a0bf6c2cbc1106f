// Package classify assigns a chapter and topic to a question stem from
// ordered keyword rules, and guesses a paper's subject from its file name.
package classify

import (
	"path/filepath"
	"strings"
)

// Default chapter and topic for stems no rule matches.
const (
	DefaultChapter = "General Topics"
	DefaultTopic   = "Mixed Topics"
)

// Rule maps any of its keywords, found as a substring of the lowercased
// stem, to a chapter and topic.
type Rule struct {
	Subject  string
	Keywords []string
	Chapter  string
	Topic    string
}

func (r Rule) matches(lower string) bool {
	for _, k := range r.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Rules is the rule table in evaluation order.
var Rules = []Rule{
	{"Physics", []string{"magnetic", "electric", "field", "flux", "induction"}, "Electromagnetic Theory", "Electric and Magnetic Fields"},
	{"Physics", []string{"lens", "mirror", "refraction", "reflection", "light"}, "Optics", "Geometrical Optics"},
	{"Physics", []string{"motion", "velocity", "acceleration", "kinematics"}, "Mechanics", "Kinematics"},
	{"Physics", []string{"thermodynamics", "heat", "temperature", "gas"}, "Thermodynamics", "Heat and Temperature"},
	{"Physics", []string{"wave", "frequency", "wavelength", "oscillation"}, "Waves", "Wave Motion"},

	{"Chemistry", []string{"bond", "molecular", "hybridization", "structure"}, "Chemical Bonding", "Molecular Structure"},
	{"Chemistry", []string{"solution", "molality", "molarity", "concentration"}, "Solutions", "Concentration"},
	{"Chemistry", []string{"electrode", "electrochemical", "oxidation", "reduction"}, "Electrochemistry", "Redox Reactions"},
	{"Chemistry", []string{"polymer", "monomer", "polymerization"}, "Polymers", "Types and Properties"},
	{"Chemistry", []string{"organic", "hydrocarbon", "alkane", "alkene"}, "Organic Chemistry", "Hydrocarbons"},

	{"Biology", []string{"gene", "dna", "rna", "genetic", "inheritance"}, "Genetics", "Molecular Genetics"},
	{"Biology", []string{"cell", "mitosis", "meiosis", "chromosome"}, "Cell Biology", "Cell Division"},
	{"Biology", []string{"plant", "flower", "leaf", "photosynthesis"}, "Plant Biology", "Plant Physiology"},
	{"Biology", []string{"evolution", "species", "natural selection"}, "Evolution", "Natural Selection"},
	{"Biology", []string{"ecosystem", "biodiversity", "conservation"}, "Ecology", "Environmental Biology"},
}

// Classify returns the chapter and topic of stem. Rules of the given
// subject are tried first, in table order, then the whole table; an empty
// or unknown subject uses the table order alone.
func Classify(stem, subject string) (chapter, topic string) {
	lower := strings.ToLower(stem)
	if subject != "" {
		for _, r := range Rules {
			if strings.EqualFold(r.Subject, subject) && r.matches(lower) {
				return r.Chapter, r.Topic
			}
		}
	}
	for _, r := range Rules {
		if r.matches(lower) {
			return r.Chapter, r.Topic
		}
	}
	return DefaultChapter, DefaultTopic
}

// SubjectFromFilename guesses the subject from a file name: "bio" means
// Biology, "chem" Chemistry and "phy" Physics, checked in that order. It
// returns "" when none appears.
func SubjectFromFilename(name string) string {
	low := strings.ToLower(filepath.Base(name))
	switch {
	case strings.Contains(low, "bio"):
		return "Biology"
	case strings.Contains(low, "chem"):
		return "Chemistry"
	case strings.Contains(low, "phy"):
		return "Physics"
	}
	return ""
}
