package model

// KnowledgeHit is one nearest-neighbour result from a knowledge store.
type KnowledgeHit struct {
	Content string
	Score   float32
}
