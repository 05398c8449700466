package internal

// InputRecord is one row from the product registration list.
type InputRecord struct {
	Identifier  string
	DisplayName string
}

type ContentBlock struct {
	ContentText string `json:"content_text"`
}

// OutputRecord is one corpus entry in the ExtensionBot/MERLIN format.
// Field names are a compatibility contract with downstream consumers.
type OutputRecord struct {
	Title      string         `json:"title"`
	Link       string         `json:"link"`
	Identifier string         `json:"epa_registration_number"`
	State      string         `json:"state"`
	Content    []ContentBlock `json:"content"`
}

type ItemStatus string

type SkipKind string

const (
	StatusAdded   ItemStatus = "added"
	StatusSkipped ItemStatus = "skipped"

	SkipMissingInput SkipKind = "missing_input"
	SkipLookupFailed SkipKind = "lookup_failed"
	SkipFetchFailed  SkipKind = "fetch_failed"
	SkipQuality      SkipKind = "quality_rejected"
	SkipExtraction   SkipKind = "extraction_failed"
)

// ItemOutcome records how a single row ended up, for operator reporting.
type ItemOutcome struct {
	Position   int
	Identifier string
	Title      string
	Link       string
	Status     ItemStatus
	SkipKind   SkipKind
	Reason     string
	Detail     string
	DocBytes   int64
	TextChars  int
}
