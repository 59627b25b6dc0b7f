package db

// Node kinds used as relation endpoints.
const (
	KindPage   = "page"
	KindEntity = "entity"
)

// Relation types.
const (
	RelMentions    = "MENTIONS"
	RelCoMention   = "CO_MENTION"
	RelPageSimilar = "PAGE_SIMILAR"
	RelRelatedTo   = "RELATED_TO"
)

// Entity types assigned by extraction.
const (
	EntityPerson       = "Person"
	EntityOrganization = "Organization"
	EntityConcept      = "Concept"
	EntityAcronym      = "Acronym"
	EntityTag          = "Tag"
	EntityUnknown      = "Unknown"
)

// Page metadata keys written by capture and the pipeline.
const (
	MetaDescription   = "metaDescription"
	MetaSummarySource = "summarySource"
)

// DefaultEmbeddingDim is recorded on pages whose embedding width was not given.
const DefaultEmbeddingDim = 384

// Page represents a row in the pages table
type Page struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Timestamp    int64          `json:"timestamp"` // Unix millis of last capture
	Summary      string         `json:"summary"`
	Content      string         `json:"content"`
	ContentHash  string         `json:"content_hash"`
	Embedding    []float32      `json:"embedding,omitempty"`
	EmbeddingDim int            `json:"embedding_dim"`
	Notes        []Note         `json:"notes"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    int64          `json:"created_at"` // Unix millis
	UpdatedAt    int64          `json:"updated_at"` // Unix millis
}

// Note is a user annotation attached to a page.
type Note struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// PagePatch is a partial page update. Nil fields keep the stored value;
// Metadata is shallow-merged into the stored map.
type PagePatch struct {
	ID          string
	Title       *string
	URL         *string
	Timestamp   *int64
	Summary     *string
	Content     *string
	ContentHash *string
	Embedding   []float32
	Notes       *[]Note
	Tags        *[]string
	Metadata    map[string]any
}

// Entity represents a row in the entities table
type Entity struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	NameLower string         `json:"name_lower"`
	Type      string         `json:"type"` // Person, Organization, Concept, Acronym, Tag, Unknown
	Aliases   []string       `json:"aliases"`
	Weight    float64        `json:"weight"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

// EntityPatch is a partial entity update. Aliases are unioned with the
// stored set, never replaced.
type EntityPatch struct {
	ID       string
	Name     *string
	Type     *string
	Aliases  []string
	Weight   *float64
	Metadata map[string]any
}

// Relation represents a row in the relations table
type Relation struct {
	ID         string         `json:"id"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	SourceKey  string         `json:"source_key"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	TargetKey  string         `json:"target_key"`
	RelType    string         `json:"rel_type"` // MENTIONS, CO_MENTION, PAGE_SIMILAR, RELATED_TO
	Weight     float64        `json:"weight"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// PageEmbedding pairs a page ID with its deserialized embedding vector.
type PageEmbedding struct {
	ID        string
	Embedding []float32
}

// Ptr returns a pointer to the given value. Useful for patch fields.
func Ptr[T any](v T) *T {
	return &v
}
