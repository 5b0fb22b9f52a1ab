package store

// Session represents the active pipeline session state in memory
type Session struct {
	ID    string `json:"id"`
	Topic string `json:"topic"` // immutable after creation
	Taste string `json:"taste"` // style profile key, immutable after creation

	Stage     string `json:"stage"`     // "research" | "write" | "review" | "completed"
	Status    string `json:"status"`    // "pending_approval" | "approved" | "max_iterations_reached"
	Iteration int    `json:"iteration"` // continuation counter, starts at 0

	// Latest text produced per stage; overwritten on every re-run
	ResearchResult string `json:"research_result"`
	WriteResult    string `json:"write_result"`
	ReviewResult   string `json:"review_result"`

	ResearchCitations []Citation     `json:"research_citations"`
	Illustrations     []Illustration `json:"illustrations"`

	// Append-only human rejection comments, one list per approval gate.
	// Never cleared; fed into every re-run of the matching stage.
	ResearchFeedbacks []string `json:"research_feedbacks"`
	ReviewFeedbacks   []string `json:"review_feedbacks"`
}

const (
	StageResearch  = "research"
	StageWrite     = "write"
	StageReview    = "review"
	StageCompleted = "completed"

	StatusPendingApproval      = "pending_approval"
	StatusApproved             = "approved"
	StatusMaxIterationsReached = "max_iterations_reached"
)

const (
	CitationKindFile = "file"
	CitationKindURL  = "url"
)

// Citation is a tagged variant: Kind selects which locator fields are set.
type Citation struct {
	Kind   string `json:"kind"` // "file" | "url"
	Text   string `json:"text"`
	FileID string `json:"file_id,omitempty"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Illustration is a deterministic placeholder derived from article headings.
type Illustration struct {
	Index    int    `json:"index"` // 1-based position
	Heading  string `json:"heading"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
	Alt      string `json:"alt"`
}
