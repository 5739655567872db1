package domain

import "time"

// Passage is an immutable unit of manual text produced by ingestion.
type Passage struct {
	ManualID   string `json:"manual_id,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	SourceTag  string `json:"source_tag,omitempty"`
	Content    string `json:"content"`
}

type ScoredPassage struct {
	Passage Passage
	Hits    int
}

type ChatReply struct {
	SessionID string    `json:"session_id"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []Passage `json:"sources,omitempty"`
}

type ChatExchange struct {
	ID        string
	SessionID string
	Question  string
	Answer    string
	Passages  int
	CreatedAt time.Time
}
