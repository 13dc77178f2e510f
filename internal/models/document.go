// Package models defines core data structures for guideline documents, chunks, retrieval results and patients.
package models

// Category is the clinical category derived from a guideline filename.
type Category string

const (
	CategoryDiabetes     Category = "diabetes"
	CategoryHypertension Category = "hypertension"
	CategoryAnaemia      Category = "anaemia"
	CategoryPCOS         Category = "pcos"
	CategoryObesity      Category = "obesity"
	CategoryPregnancy    Category = "pregnancy"
	CategoryGeneral      Category = "general"
)

// Categories lists every category in tie-break order.
var Categories = []Category{
	CategoryDiabetes,
	CategoryHypertension,
	CategoryAnaemia,
	CategoryPCOS,
	CategoryObesity,
	CategoryPregnancy,
	CategoryGeneral,
}

// Metadata keys stamped on every stored chunk.
const (
	MetaSource   = "source"
	MetaCategory = "category"
	MetaPage     = "page"
	MetaSequence = "sequence"
)

// DocumentUnit is one page or logical section of a source file.
type DocumentUnit struct {
	Text     string   `json:"text"`
	Source   string   `json:"source"`
	Category Category `json:"category"`
	// Page is 1-based; sections without pages use their position.
	Page int `json:"page"`
}

// Chunk is a bounded excerpt of one source file.
type Chunk struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Source   string   `json:"source"`
	Category Category `json:"category"`
	Page     int      `json:"page"`
	Sequence int      `json:"sequence"`
	// Overlap is the number of leading runes of Text repeated from the previous chunk.
	Overlap int `json:"overlap,omitempty"`
}

// Metadata returns the string metadata stored alongside the chunk vector.
func (c *Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource:   c.Source,
		MetaCategory: string(c.Category),
		MetaPage:     itoa(c.Page),
		MetaSequence: itoa(c.Sequence),
	}
}
