package embed

// modelDimensions maps known embedding models to their vector size.
// Models not listed here must be explicitly dimensioned by the caller at
// collection creation.
var modelDimensions = map[string]int{
	"Qwen/Qwen3-Embedding-8B":                4096,
	"BAAI/bge-large-en-v1.5":                 1024,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-small-en-v1.5":                 384,
	"intfloat/e5-large-v2":                   1024,
	"intfloat/e5-base-v2":                    768,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
}

// DimensionsFor returns the vector size of a known model.
// The second return is false for unknown models.
func DimensionsFor(model string) (int, bool) {
	dim, ok := modelDimensions[model]
	return dim, ok
}
