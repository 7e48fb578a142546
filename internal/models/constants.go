package models

const (
	DefaultTopK          = 3
	DefaultContextChars  = 800
	DefaultWordsPerChunk = 500

	// ChunkHeaderRegex matches the block separator of legacy chunk files.
	ChunkHeaderRegex = `^--- CHUNK (\d+) ---$`
	ContextSeparator = "\n\n"

	NotReadyAnswer = "Index for requested PDF is not ready yet. Please try later."
	HealthStatus   = "RAG API running"

	IndexFileName  = "index.chromem"
	ChunksFileName = "chunks.msgpack"
	ChunkFileName  = "chunks.jsonl"
)

var (
	PromptTemplate = `
You are a helpful study assistant.
Answer the question using the context below.
If the answer is not in the context, then answer accordingly to you knowledge.

Context:
%s

Question:
%s

Answer:
`
)
