package scholar

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/config"
	"github.com/siherrmann/scholar/core/graph"
	"github.com/siherrmann/scholar/core/index"
	"github.com/siherrmann/scholar/core/pipeline"
	"github.com/siherrmann/scholar/core/queue"
	"github.com/siherrmann/scholar/core/retrieval"
	"github.com/siherrmann/scholar/core/synthesis"
	"github.com/siherrmann/scholar/database"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	loadSql "github.com/siherrmann/scholar/sql"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Scholar wires storage, indexing, retrieval and answer synthesis together.
type Scholar struct {
	DB          *helper.Database // nil for in-memory instances
	Settings    *config.Settings
	Papers      index.PaperStore
	Chunks      index.ChunkStore
	Sparse      index.SparseIndex
	Coordinator *index.Coordinator
	Engine      *retrieval.Engine
	Queue       *queue.Queue

	embeddings *database.EmbeddingsDBHandler // set for Postgres instances
	denseFor   func(embeddingModel string, dims int) (index.DenseIndex, error)

	mu          sync.RWMutex
	synthesizer *synthesis.Synthesizer

	// Logging
	log *slog.Logger
}

// NewScholar creates a Scholar instance backed by Postgres with pgvector.
// A nil settings uses the defaults merged with the environment.
func NewScholar(dbConfig *helper.DatabaseConfiguration, settings *config.Settings) (*Scholar, error) {
	settings, err := checkSettings(settings)
	if err != nil {
		return nil, err
	}
	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)

	// Initialize database
	db := helper.NewDatabase("scholar", dbConfig, logger)
	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Papers first, chunks and embeddings reference them
	papers, err := database.NewPapersDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create papers handler", err)
	}
	chunks, err := database.NewChunksDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}
	embeddings, err := database.NewEmbeddingsDBHandler(db, settings.Embedding.Dims, settings.Embedding.Model, false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}
	sparse, err := database.NewSparseDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create sparse handler", err)
	}

	s := &Scholar{
		DB:         db,
		Settings:   settings,
		embeddings: embeddings,
		log:        logger,
	}
	s.denseFor = func(embeddingModel string, dims int) (index.DenseIndex, error) {
		if dims != embeddings.Dim() {
			return nil, helper.Wrap(helper.ErrInvalidInput, "embedding dimension %d does not match the table dimension %d", dims, embeddings.Dim())
		}
		return embeddings.ForModel(embeddingModel), nil
	}

	if err := s.wire(papers, chunks, embeddings, sparse); err != nil {
		_ = db.Instance.Close()
		return nil, err
	}
	return s, nil
}

// NewInMemoryScholar creates a Scholar instance keeping everything in memory.
func NewInMemoryScholar(settings *config.Settings) (*Scholar, error) {
	settings, err := checkSettings(settings)
	if err != nil {
		return nil, err
	}

	dense := index.NewMemoryDenseIndex(settings.Embedding.Model, settings.Embedding.Dims)
	s := &Scholar{
		Settings: settings,
		log:      helper.NewLogger(os.Stdout, slog.LevelInfo),
	}
	s.denseFor = func(embeddingModel string, dims int) (index.DenseIndex, error) {
		return dense.ForModel(embeddingModel, dims), nil
	}

	if err := s.wire(index.NewMemoryPaperStore(), index.NewMemoryChunkStore(), dense, index.NewBM25Index()); err != nil {
		return nil, err
	}
	return s, nil
}

func checkSettings(settings *config.Settings) (*config.Settings, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if err := settings.Check(); err != nil {
		return nil, helper.NewError("validate settings", err)
	}
	return settings, nil
}

func (s *Scholar) wire(papers index.PaperStore, chunks index.ChunkStore, dense index.DenseIndex, sparse index.SparseIndex) error {
	embed, err := NewEmbedFunc(s.Settings)
	if err != nil {
		return helper.NewError("create embedder", err)
	}
	client, err := s.newEmbeddingClient(embed, s.Settings.Embedding.Model, s.Settings.Embedding.Dims)
	if err != nil {
		return err
	}

	p := pipeline.NewPipeline(pipeline.TokenChunker(s.Settings.Chunking.Size, s.Settings.Chunking.Overlap))
	if s.Settings.Keywords.Extract {
		p.Keywords, err = pipeline.DefaultKeywordExtractor()
		if err != nil {
			return helper.NewError("create keyword extractor", err)
		}
	}
	coordinator, err := index.NewCoordinator(papers, chunks, dense, sparse, p, client, s.log)
	if err != nil {
		return helper.NewError("create coordinator", err)
	}
	engine, err := retrieval.NewEngine(papers, chunks, dense, sparse, client, s.Settings.RetrievalConfig(), s.log)
	if err != nil {
		return helper.NewError("create retrieval engine", err)
	}
	q, err := queue.NewQueue(coordinator, s.Settings.Queue.Workers, s.Settings.Queue.Capacity, s.log)
	if err != nil {
		return helper.NewError("create indexing queue", err)
	}

	s.Papers = papers
	s.Chunks = chunks
	s.Sparse = sparse
	s.Coordinator = coordinator
	s.Engine = engine
	s.Queue = q

	if err := s.useGenerationSettings(); err != nil {
		return err
	}

	return q.Start(context.Background())
}

func (s *Scholar) newEmbeddingClient(embed pipeline.BatchEmbedFunc, embeddingModel string, dims int) (*pipeline.EmbeddingClient, error) {
	clientConfig := pipeline.DefaultEmbeddingClientConfig()
	clientConfig.Model = embeddingModel
	clientConfig.Dims = dims
	clientConfig.BatchSize = s.Settings.Embedding.BatchSize
	clientConfig.RatePerSecond = s.Settings.Embedding.RatePerSecond
	clientConfig.Burst = s.Settings.Embedding.Burst
	clientConfig.MaxAttempts = s.Settings.Embedding.MaxAttempts
	clientConfig.InitialBackoff = s.Settings.Embedding.InitialBackoff

	client, err := pipeline.NewEmbeddingClient(embed, clientConfig, s.log)
	if err != nil {
		return nil, helper.NewError("create embedding client", err)
	}
	return client, nil
}

// NewEmbedFunc creates the embedder configured in settings.
func NewEmbedFunc(settings *config.Settings) (pipeline.BatchEmbedFunc, error) {
	switch settings.Embedding.Provider {
	case config.ProviderHugot:
		return pipeline.HugotEmbedder(settings.Embedding.Model, "onnx/model.onnx")
	case config.ProviderOllama:
		llm, err := ollama.New(ollama.WithModel(settings.Embedding.Model), ollama.WithServerURL(settings.Embedding.BaseURL))
		if err != nil {
			return nil, err
		}
		return pipeline.LangchainEmbedder(llm), nil
	case config.ProviderOpenAI:
		llm, err := openai.New(openai.WithToken(settings.Embedding.APIKey), openai.WithEmbeddingModel(settings.Embedding.Model))
		if err != nil {
			return nil, err
		}
		return pipeline.LangchainEmbedder(llm), nil
	case config.ProviderHash:
		return pipeline.HashEmbedder(settings.Embedding.Dims), nil
	default:
		return nil, helper.Wrap(helper.ErrInvalidInput, "unknown embedding provider %q", settings.Embedding.Provider)
	}
}

// NewGenerationModel creates the language model configured in settings.
// It returns nil without a generation provider.
func NewGenerationModel(settings *config.Settings) (llms.Model, error) {
	switch settings.Generation.Provider {
	case "":
		return nil, nil
	case config.ProviderOllama:
		return synthesis.NewOllamaModel(settings.Generation.Model, settings.Generation.BaseURL)
	case config.ProviderOpenAI:
		return openai.New(openai.WithToken(settings.Embedding.APIKey), openai.WithModel(settings.Generation.Model))
	default:
		return nil, helper.Wrap(helper.ErrInvalidInput, "unknown generation provider %q", settings.Generation.Provider)
	}
}

func (s *Scholar) useGenerationSettings() error {
	llm, err := NewGenerationModel(s.Settings)
	if err != nil {
		return helper.NewError("create generation model", err)
	}
	if llm == nil {
		return nil
	}

	generate := synthesis.LangchainGenerator(llm,
		llms.WithTemperature(s.Settings.GenerationTemperature()),
		llms.WithMaxTokens(s.Settings.Generation.MaxTokens),
	)
	if err := s.SetGenerator(generate); err != nil {
		return err
	}
	if s.Settings.Translation.Enabled {
		s.SetTranslator(synthesis.LangchainTranslator(llm, s.Settings.Translation.TargetLanguage))
	}

	s.log.Info("Configured generation", "provider", s.Settings.Generation.Provider, "model", s.Settings.Generation.Model)
	return nil
}

// Close stops the indexing queue and closes the database connection
func (s *Scholar) Close() error {
	if s.Queue != nil {
		s.Queue.Stop()
	}
	if s.DB != nil && s.DB.Instance != nil {
		return s.DB.Instance.Close()
	}
	return nil
}

// SetEmbedder switches indexing and search to another embedding model.
// Chunks without an embedding of the new model are embedded again on their
// next indexing run.
func (s *Scholar) SetEmbedder(embed pipeline.BatchEmbedFunc, embeddingModel string, dims int) error {
	if embed == nil || strings.TrimSpace(embeddingModel) == "" || dims <= 0 {
		return helper.NewError("set embedder", helper.Wrap(helper.ErrInvalidInput, "embed function, model and positive dimension are required"))
	}

	dense, err := s.denseFor(embeddingModel, dims)
	if err != nil {
		return helper.NewError("set embedder", err)
	}
	client, err := s.newEmbeddingClient(embed, embeddingModel, dims)
	if err != nil {
		return err
	}

	s.Coordinator.SetEmbeddingClient(client, dense)
	s.Engine.SetEmbedder(client, dense)

	s.log.Info("Switched embedding model", "model", embeddingModel, "dims", dims)
	return nil
}

// SetGenerator sets the language model used by Ask
func (s *Scholar) SetGenerator(generate synthesis.GenerateFunc) error {
	synthesizer, err := synthesis.NewSynthesizer(generate, s.log)
	if err != nil {
		return helper.NewError("set generator", err)
	}

	s.mu.Lock()
	s.synthesizer = synthesizer
	s.mu.Unlock()
	return nil
}

// SetTranslator sets the query translation, nil disables it
func (s *Scholar) SetTranslator(translate retrieval.TranslateFunc) {
	s.Engine.SetTranslator(translate)
}

// IndexPaper chunks and indexes a paper synchronously. Indexing the same
// content again is a no-op.
func (s *Scholar) IndexPaper(ctx context.Context, paper *model.Paper) (*model.IndexReport, error) {
	return s.Coordinator.IndexPaper(ctx, paper)
}

// ReindexPaper drops the indexed state of the paper and indexes it again.
func (s *Scholar) ReindexPaper(ctx context.Context, paper *model.Paper) (*model.IndexReport, error) {
	return s.Coordinator.ReindexPaper(ctx, paper)
}

// DeletePaper removes a paper with its chunks from every store.
func (s *Scholar) DeletePaper(ctx context.Context, paperID string) error {
	return s.Coordinator.PurgePaper(ctx, paperID)
}

// LoadPaperFile reads a paper from a PDF, a JATS/HTML document or a plain text file.
func LoadPaperFile(path string, metadata model.Metadata) (*model.Paper, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return model.NewPaperFromPDF(path, metadata)
	case ".xml", ".nxml", ".html", ".htm":
		paper, err := model.NewPaperFromFile(path, metadata)
		if err != nil {
			return nil, err
		}
		sections, err := pipeline.ExtractSections(paper.Sections[0].Text)
		if err != nil {
			return nil, helper.NewError("extract sections", err)
		}
		paper.Sections = sections
		return paper, nil
	default:
		return model.NewPaperFromFile(path, metadata)
	}
}

// IndexFile loads a paper file and indexes it.
func (s *Scholar) IndexFile(ctx context.Context, path string, metadata model.Metadata) (*model.IndexReport, error) {
	paper, err := LoadPaperFile(path, metadata)
	if err != nil {
		return nil, err
	}
	return s.IndexPaper(ctx, paper)
}

// ScheduleIndexing queues papers for background indexing and returns one job id per paper.
func (s *Scholar) ScheduleIndexing(papers ...*model.Paper) ([]uuid.UUID, error) {
	return s.Queue.EnqueueMany(papers)
}

// JobStatus returns the state of an indexing job.
func (s *Scholar) JobStatus(jobID uuid.UUID) (*model.IndexJob, error) {
	return s.Queue.Status(jobID)
}

// WaitForJob blocks until an indexing job finished.
func (s *Scholar) WaitForJob(ctx context.Context, jobID uuid.UUID) (*model.IndexJob, error) {
	return s.Queue.Wait(ctx, jobID)
}

// Search performs a hybrid search over the indexed chunks.
func (s *Scholar) Search(ctx context.Context, query string, opts model.SearchOptions) (*model.SearchResult, error) {
	return s.Engine.Search(ctx, query, opts)
}

// SearchPapers performs a hybrid search and groups the chunks by paper.
func (s *Scholar) SearchPapers(ctx context.Context, query string, opts model.SearchOptions) ([]*model.PaperResult, error) {
	return s.Engine.SearchPapers(ctx, query, opts)
}

// SimilarPapers returns the papers closest to an indexed paper, excluding it.
func (s *Scholar) SimilarPapers(ctx context.Context, paperID string, limit int) ([]*model.SimilarPaper, error) {
	return s.Engine.SimilarPapers(ctx, paperID, limit)
}

// Ask answers a question from the retrieved evidence. Without evidence, or if
// not even one chunk fits into the token budget, the answer is flagged
// NoEvidence instead of calling the model.
func (s *Scholar) Ask(ctx context.Context, question string, opts model.SearchOptions) (*model.Answer, error) {
	s.mu.RLock()
	synthesizer := s.synthesizer
	s.mu.RUnlock()
	if synthesizer == nil {
		return nil, helper.NewError("ask", helper.Wrap(helper.ErrInvalidInput, "no generator configured, use SetGenerator first"))
	}

	result, err := s.Engine.Search(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	retrievalConfig := s.Engine.Config()
	window, err := retrieval.BuildContext(result.Results, retrievalConfig.TokenBudget, retrievalConfig.PerPaperCap)
	if errors.Is(err, helper.ErrBudgetExceeded) {
		s.log.Warn("No chunk fits into the context budget", "budget", retrievalConfig.TokenBudget, "candidates", len(result.Results))
		window = &model.ContextWindow{Items: []*model.FusedResult{}, Budget: retrievalConfig.TokenBudget}
	} else if err != nil {
		return nil, helper.NewError("build context", err)
	}

	answer, err := synthesizer.Answer(ctx, question, window)
	if err != nil {
		return nil, err
	}
	answer.Degraded = result.Degraded

	return answer, nil
}

// Graph builds the exploration graph of the current corpus.
func (s *Scholar) Graph(ctx context.Context) (*graph.MemoryGraph, error) {
	papers, err := s.Coordinator.Papers(ctx)
	if err != nil {
		return nil, helper.NewError("load papers", err)
	}
	return graph.Build(papers), nil
}

// Purge removes every paper, chunk and index entry.
func (s *Scholar) Purge(ctx context.Context) error {
	return s.Coordinator.Purge(ctx)
}

// ChangeIndexType rebuilds the pgvector index as HNSW or IVFFlat.
func (s *Scholar) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if s.embeddings == nil {
		return helper.NewError("change index type", helper.Wrap(helper.ErrInvalidInput, "in-memory instances have no vector index"))
	}
	return s.embeddings.ChangeIndexType(ctx, indexType, params)
}
