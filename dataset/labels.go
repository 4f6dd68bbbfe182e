package dataset

// SectionLabels are the section categories a sentence can belong to. The
// label index is the position in this list.
var SectionLabels = []string{
	"address",
	"affiliation",
	"author",
	"bodyText",
	"category",
	"construct",
	"copyright",
	"email",
	"equation",
	"figure",
	"figureCaption",
	"footnote",
	"keyword",
	"listItem",
	"note",
	"page",
	"reference",
	"sectionHeader",
	"subsectionHeader",
	"subsubsectionHeader",
	"tableCaption",
	"table",
	"title",
}

// LabelMapping returns the label name to index mapping.
func LabelMapping() map[string]int {
	mapping := make(map[string]int, len(SectionLabels))
	for idx, name := range SectionLabels {
		mapping[name] = idx
	}
	return mapping
}
