// Package mock provides test doubles for the ai interfaces.
//
// The mocks let tests run without a model server and behave deterministically.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	vec, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([]core.Vector, error) {
//	    return nil, errors.New("provider down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors derived from an FNV hash of the text
//   - MockTagExtractor: the query's words, normalized, as tags
//   - MockProvider: aggregates both
package mock
