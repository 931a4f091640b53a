package model

import (
	"encoding/json"
	"time"
)

// KnowledgeChunk stores a knowledge-base passage and its embedding.
// Embedding is stored as JSON array of float32 for portability.
type KnowledgeChunk struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Source    string    `gorm:"size:256;index" json:"source"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Embedding string    `gorm:"type:mediumtext" json:"-"`
	Dimension int       `gorm:"not null" json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *KnowledgeChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON and records its dimension.
func (c *KnowledgeChunk) SetEmbedding(vec []float32) {
	c.Dimension = len(vec)
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
