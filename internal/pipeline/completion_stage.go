// internal/pipeline/completion_stage.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"form-orchestrator/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// StageNameFormCompletion is the wire name of the form-completion stage.
const StageNameFormCompletion = "FormCompletion"

// Retriever queries the knowledge base for context passages relevant to one
// question, scoped to a single user's documents.
type Retriever interface {
	Retrieve(ctx context.Context, query, username string, year, numResults int) ([]string, error)
}

// EnrichedQuestion pairs a form question with the context retrieved for it.
type EnrichedQuestion struct {
	Question string   `json:"question"`
	Contexts []string `json:"contexts"`
}

// GenerationRequest is the model invocation payload for drafting the form.
type GenerationRequest struct {
	Template  []byte
	Prompt    string
	Questions []EnrichedQuestion
}

// ModelInvoker drafts the completed form from the template, the writing prompt
// and the enriched questions. The model is an external collaborator.
type ModelInvoker interface {
	GenerateForm(ctx context.Context, req GenerationRequest) (string, error)
}

// CompletionStageConfig carries the stage's bucket layout and concurrency knobs.
type CompletionStageConfig struct {
	DocumentBucket string // Holds form templates, questions and prompts
	FilledBucket   string // Receives the completed form
	MaxWorkers     int    // Bound on concurrent retrieval queries
}

// FormCompletionStage assembles the completed application form: it loads the
// form template, its question list and the writing prompt from the document
// bucket, retrieves context for every question from the knowledge base, asks
// the model to draft the form and stores the result in the filled bucket.
type FormCompletionStage struct {
	store     domain.ObjectStore
	retriever Retriever
	model     ModelInvoker
	cfg       CompletionStageConfig
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewFormCompletionStage(store domain.ObjectStore, retriever Retriever, model ModelInvoker, cfg CompletionStageConfig, logger *slog.Logger) *FormCompletionStage {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 15
	}
	return &FormCompletionStage{
		store:     store,
		retriever: retriever,
		model:     model,
		cfg:       cfg,
		logger:    logger.With("component", "form-completion-stage"),
		tracer:    otel.Tracer("form-orchestrator-pipeline"),
	}
}

func (s *FormCompletionStage) Name() string { return StageNameFormCompletion }

func (s *FormCompletionStage) Run(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "stage.FormCompletion")
	defer span.End()

	var req SyncOutput
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("failed to decode completion stage input: %w", err)
	}
	form := req.ApplicationForm
	span.SetAttributes(
		attribute.String("submission.username", req.Username),
		attribute.String("submission.form", form),
	)

	template, err := s.store.Get(ctx, s.cfg.DocumentBucket, fmt.Sprintf("%s/templates/%s_template.docx", form, form))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "form template not found")
		return nil, fmt.Errorf("form template for %s not found: %w", form, err)
	}

	questions, err := s.loadQuestions(ctx, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "questions not found")
		return nil, err
	}

	prompt, err := s.store.Get(ctx, s.cfg.DocumentBucket, fmt.Sprintf("%s/prompts/%s_application_writing_prompt.txt", form, form))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "writing prompt not found")
		return nil, fmt.Errorf("writing prompt for %s not found: %w", form, err)
	}

	enriched, err := s.retrieveContexts(ctx, questions, req.Username, req.Year, req.NumResults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context retrieval failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("completion.questions", len(enriched)))

	start := time.Now()
	formText, err := s.model.GenerateForm(ctx, GenerationRequest{
		Template:  template,
		Prompt:    string(prompt),
		Questions: enriched,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "form generation failed")
		return nil, fmt.Errorf("failed to generate completed form: %w", err)
	}
	s.logger.Info("form drafted", "username", req.Username, "form", form, "duration", time.Since(start))

	filename := fmt.Sprintf("%s_%d_%s_completed.md", req.Username, req.Year, form)
	outputKey := fmt.Sprintf("%s/%d/%s", req.Username, req.Year, filename)
	if err := s.store.Put(ctx, s.cfg.FilledBucket, outputKey, []byte(formText), "text/markdown"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store completed form")
		return nil, fmt.Errorf("failed to store completed form at %s: %w", outputKey, err)
	}

	return json.Marshal(CompletionOutput{
		BasePayload: req.BasePayload,
		FormText:    formText,
		Filename:    filename,
		OutputKey:   outputKey,
		GeneratedAt: time.Now().Format("2006-01-02"),
	})
}

// loadQuestions reads the form's question list from the document bucket.
func (s *FormCompletionStage) loadQuestions(ctx context.Context, form string) ([]string, error) {
	raw, err := s.store.Get(ctx, s.cfg.DocumentBucket, fmt.Sprintf("%s/questions/%s_questions.json", form, form))
	if err != nil {
		return nil, fmt.Errorf("questions for %s not found: %w", form, err)
	}
	var doc struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode questions for %s: %w", form, err)
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("question list for %s is empty", form)
	}
	return doc.Questions, nil
}

// retrieveContexts fans the retrieval queries out over a bounded worker group.
// Results keep the question order regardless of completion order.
func (s *FormCompletionStage) retrieveContexts(ctx context.Context, questions []string, username string, year, numResults int) ([]EnrichedQuestion, error) {
	enriched := make([]EnrichedQuestion, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxWorkers)
	for i, question := range questions {
		g.Go(func() error {
			contexts, err := s.retriever.Retrieve(gctx, question, username, year, numResults)
			if err != nil {
				return fmt.Errorf("failed to retrieve context for question %d: %w", i, err)
			}
			enriched[i] = EnrichedQuestion{Question: question, Contexts: contexts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}
