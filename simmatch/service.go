package simmatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// ErrInvalidThreshold is returned for thresholds outside [-1, 1].
var ErrInvalidThreshold = errors.New("threshold must be within [-1, 1]")

// CompareOptions overrides the configured comparison settings for one run.
// Zero values fall back to the service configuration.
type CompareOptions struct {
	// Threshold, when non-nil, replaces the configured threshold. Zero is a
	// valid cutoff.
	Threshold   *float32
	Left        TableSpec
	Right       TableSpec
	SortByScore bool
	// Progress, when set, is called after each stage with the stage name.
	Progress func(stage string)
}

// Service reads, embeds and compares two tables.
type Service struct {
	embedder Embedder

	cfgMu sync.RWMutex
	cfg   Config

	logger *log.Logger
}

// NewService constructs a service with the given embedder and configuration.
func NewService(embedder Embedder, cfg Config, logger *log.Logger) (*Service, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	cfg.ApplyDefaults()
	return &Service{
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Close releases embedder resources.
func (s *Service) Close() error {
	if s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig replaces the configuration.
func (s *Service) UpdateConfig(cfg Config) {
	cfg.ApplyDefaults()
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

// CompareFiles reads the first worksheet of both files and compares them.
// opts.Left.Name and opts.Right.Name, when set, replace the file-derived names.
func (s *Service) CompareFiles(ctx context.Context, leftPath, rightPath string, opts CompareOptions) (Result, error) {
	left, err := ReadTable(leftPath, ReadOptions{Name: opts.Left.Name})
	if err != nil {
		return Result{}, fmt.Errorf("read left file: %w", err)
	}
	right, err := ReadTable(rightPath, ReadOptions{Name: opts.Right.Name})
	if err != nil {
		return Result{}, fmt.Errorf("read right file: %w", err)
	}
	return s.Compare(ctx, left, right, opts)
}

// Compare embeds the text column of both tables, scores every pair and keeps
// the pairs at or above the threshold.
func (s *Service) Compare(ctx context.Context, left, right Table, opts CompareOptions) (Result, error) {
	cfg := s.Config()
	threshold := cfg.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	// Written so NaN fails too.
	if !(threshold >= -1 && threshold <= 1) {
		return Result{}, fmt.Errorf("%v: %w", threshold, ErrInvalidThreshold)
	}
	leftSide, err := SelectRecords(left, mergeSpec(cfg.Left, opts.Left), cfg.Columns)
	if err != nil {
		return Result{}, fmt.Errorf("select left records: %w", err)
	}
	rightSide, err := SelectRecords(right, mergeSpec(cfg.Right, opts.Right), cfg.Columns)
	if err != nil {
		return Result{}, fmt.Errorf("select right records: %w", err)
	}
	s.logf("Comparing %s (%d rows, column %q) with %s (%d rows, column %q)",
		leftSide.Name, len(leftSide.Records), leftSide.TextHeader,
		rightSide.Name, len(rightSide.Records), rightSide.TextHeader)
	opts.report("selected")

	res := Result{Threshold: threshold, Left: leftSide, Right: rightSide}
	if len(leftSide.Records) == 0 || len(rightSide.Records) == 0 {
		s.logf("Nothing to compare")
		return res, nil
	}

	start := time.Now()
	leftVecs, err := s.embedRecords(ctx, leftSide.Records)
	if err != nil {
		return Result{}, fmt.Errorf("embed %s: %w", leftSide.Name, err)
	}
	opts.report("embedded-left")
	rightVecs, err := s.embedRecords(ctx, rightSide.Records)
	if err != nil {
		return Result{}, fmt.Errorf("embed %s: %w", rightSide.Name, err)
	}
	opts.report("embedded-right")
	s.logf("Embedded %d texts with %s in %.2fs", len(leftVecs)+len(rightVecs), s.embedder.ModelID(), time.Since(start).Seconds())

	res.Matrix = SimilarityMatrix(leftVecs, rightVecs)
	res.Matches = FilterMatches(res.Matrix, leftSide.Records, rightSide.Records, threshold)
	res.Best = BestPerLeft(res.Matches)
	if opts.SortByScore {
		res.Matches = SortByScore(res.Matches)
	}
	opts.report("scored")
	s.logf("Found %d matches out of %d pairs (threshold %.2f)", len(res.Matches), res.Pairs(), threshold)
	return res, nil
}

func (s *Service) embedRecords(ctx context.Context, records []Record) ([][]float32, error) {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	return s.embedder.EmbedTexts(ctx, texts)
}

func (o CompareOptions) report(stage string) {
	if o.Progress != nil {
		o.Progress(stage)
	}
}

func mergeSpec(base, override TableSpec) TableSpec {
	out := TableSpec{Name: base.Name, TextColumn: base.TextColumn, IDColumns: cloneStrings(base.IDColumns)}
	if strings.TrimSpace(override.Name) != "" {
		out.Name = override.Name
	}
	if strings.TrimSpace(override.TextColumn) != "" {
		out.TextColumn = override.TextColumn
	}
	if override.IDColumns != nil {
		out.IDColumns = cloneStrings(override.IDColumns)
	}
	return out
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
