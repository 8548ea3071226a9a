package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"profile-analytics/internal/models"
)

// Feature family prefixes. The processor is the single authority for the
// feature-name namespace; sub-extractors emit unprefixed keys.
const (
	FamilyTemporal     = "temporal"
	FamilyPattern      = "pattern"
	FamilyText         = "text"
	FamilyTFIDF        = "tfidf"
	FamilyConversation = "conversation"
	FamilyCaller       = "caller"
)

// ScalerType selects the fitted normalization applied by NormalizeFeatures
type ScalerType string

const (
	ScalerStandard ScalerType = "standard"
	ScalerMinMax   ScalerType = "minmax"
)

// familyResult carries one extractor family's outcome. Failure handling is
// explicit in the aggregation instead of hidden in panic recovery: a family
// that failed contributes no keys and is logged, the rest of the vector
// survives.
type familyResult struct {
	family   string
	features map[string]float64
	err      error
}

// featureScaler holds per-feature statistics from a batch fit
type featureScaler struct {
	Kind  ScalerType         `json:"kind"`
	Mean  map[string]float64 `json:"mean,omitempty"`
	Std   map[string]float64 `json:"std,omitempty"`
	Min   map[string]float64 `json:"min,omitempty"`
	Max   map[string]float64 `json:"max,omitempty"`
}

// Processor orchestrates the three extractors into one flat named feature
// vector per call. Scaler and importance state are owned by the instance;
// construct once and inject wherever vectors are built.
type Processor struct {
	logger *zap.Logger

	temporal   *TemporalExtractor
	text       *TextExtractor
	behavioral *BehavioralExtractor
	tfidf      *TFIDFVectorizer

	scalers map[ScalerType]*featureScaler

	importance      map[string]float64
	importanceOrder []string
}

// NewProcessor creates a feature processor with fresh extractor instances
func NewProcessor(logger *zap.Logger) *Processor {
	return &Processor{
		logger:     logger,
		temporal:   NewTemporalExtractor(logger),
		text:       NewTextExtractor(logger),
		behavioral: NewBehavioralExtractor(logger),
		tfidf:      NewTFIDFVectorizer(logger),
		scalers:    make(map[ScalerType]*featureScaler),
		importance: make(map[string]float64),
	}
}

// CreateFeatureVector merges every applicable feature family into one flat
// mapping with family-prefixed keys. A failed family omits its keys; absent
// optional inputs (history, transcript) omit their families entirely.
func (p *Processor) CreateFeatureVector(call models.CallRecord, history []models.CallRecord, transcript string) map[string]float64 {
	results := []familyResult{
		p.extractFamily(FamilyTemporal, func() map[string]float64 {
			return p.temporal.CallTimingFeatures(call)
		}),
		p.extractFamily(FamilyConversation, func() map[string]float64 {
			return p.behavioral.ConversationFeatures(call)
		}),
		p.extractFamily(FamilyCaller, func() map[string]float64 {
			return p.behavioral.CallerBehaviorFeatures(call.Caller)
		}),
	}

	if len(history) > 0 {
		results = append(results, p.extractFamily(FamilyPattern, func() map[string]float64 {
			return p.temporal.PatternFeatures(history)
		}))
	}
	if strings.TrimSpace(transcript) != "" {
		results = append(results, p.extractFamily(FamilyText, func() map[string]float64 {
			return p.text.TextFeatures(transcript)
		}))
		if len(p.tfidf.Vocabulary()) > 0 {
			results = append(results, p.extractFamily(FamilyTFIDF, func() map[string]float64 {
				return p.tfidfFeatures(transcript)
			}))
		}
	}

	vector := make(map[string]float64)
	for _, result := range results {
		if result.err != nil {
			p.logger.Error("feature family extraction failed, omitting family",
				zap.String("family", result.family),
				zap.Error(result.err))
			continue
		}
		for name, value := range result.features {
			vector[result.family+"_"+name] = value
		}
	}
	return vector
}

// FitTextVectorizer fits the TF-IDF vocabulary over a transcript corpus so
// later vectors carry term-weight features. The vocabulary lives in memory;
// until the next corpus fit after a restart, tfidf columns zero-fill.
func (p *Processor) FitTextVectorizer(transcripts []string) {
	if len(transcripts) == 0 {
		return
	}
	p.tfidf.FitTransform(transcripts)
	p.logger.Info("tfidf vocabulary fitted",
		zap.Int("documents", len(transcripts)),
		zap.Int("terms", len(p.tfidf.Vocabulary())))
}

// tfidfFeatures maps one transcript onto the fitted vocabulary. Bigram terms
// carry spaces; feature names replace them with underscores.
func (p *Processor) tfidfFeatures(transcript string) map[string]float64 {
	matrix := p.tfidf.Transform([]string{transcript})
	vocabulary := p.tfidf.Vocabulary()

	features := make(map[string]float64, len(vocabulary))
	for i, term := range vocabulary {
		features[strings.ReplaceAll(term, " ", "_")] = matrix.At(0, i)
	}
	return features
}

// extractFamily runs one extractor, converting a panic into a failed result
// so a single family cannot abort the whole vector
func (p *Processor) extractFamily(family string, extract func() map[string]float64) (result familyResult) {
	result.family = family
	defer func() {
		if r := recover(); r != nil {
			result.features = nil
			result.err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	result.features = extract()
	return result
}

// FitScaler fits normalization statistics over a batch of feature vectors
func (p *Processor) FitScaler(samples []map[string]float64, kind ScalerType) error {
	if len(samples) == 0 {
		return fmt.Errorf("cannot fit %s scaler on empty batch", kind)
	}
	if kind != ScalerStandard && kind != ScalerMinMax {
		return fmt.Errorf("unknown scaler type: %s", kind)
	}

	columns := make(map[string][]float64)
	for _, sample := range samples {
		for name, value := range sample {
			columns[name] = append(columns[name], value)
		}
	}

	scaler := &featureScaler{Kind: kind}
	switch kind {
	case ScalerStandard:
		scaler.Mean = make(map[string]float64, len(columns))
		scaler.Std = make(map[string]float64, len(columns))
		for name, values := range columns {
			scaler.Mean[name] = stat.Mean(values, nil)
			scaler.Std[name] = stat.PopStdDev(values, nil)
		}
	case ScalerMinMax:
		scaler.Min = make(map[string]float64, len(columns))
		scaler.Max = make(map[string]float64, len(columns))
		for name, values := range columns {
			scaler.Min[name] = minOf(values)
			scaler.Max[name] = maxOf(values)
		}
	}

	p.scalers[kind] = scaler
	p.logger.Info("feature scaler fitted",
		zap.String("kind", string(kind)),
		zap.Int("samples", len(samples)),
		zap.Int("features", len(columns)))
	return nil
}

// NormalizeFeatures applies a previously fitted scaler. A single sample is
// statistically meaningless to fit on, so an unfitted scaler returns the
// input unchanged with a warning.
func (p *Processor) NormalizeFeatures(features map[string]float64, kind ScalerType) map[string]float64 {
	scaler, ok := p.scalers[kind]
	if !ok {
		p.logger.Warn("no fitted scaler, returning features unchanged",
			zap.String("kind", string(kind)))
		return features
	}

	normalized := make(map[string]float64, len(features))
	for name, value := range features {
		switch scaler.Kind {
		case ScalerStandard:
			std := scaler.Std[name]
			if std == 0 {
				normalized[name] = 0
			} else {
				normalized[name] = (value - scaler.Mean[name]) / std
			}
		case ScalerMinMax:
			span := scaler.Max[name] - scaler.Min[name]
			if span == 0 {
				normalized[name] = 0
			} else {
				normalized[name] = (value - scaler.Min[name]) / span
			}
		}
	}
	return normalized
}

// SetFeatureImportance records the importance table used by
// SelectImportantFeatures. Encounter order of names breaks ranking ties.
func (p *Processor) SetFeatureImportance(importance map[string]float64, order []string) {
	p.importance = make(map[string]float64, len(importance))
	for name, value := range importance {
		p.importance[name] = value
	}
	p.importanceOrder = append([]string(nil), order...)
}

// SelectImportantFeatures returns the topK entries ranked by the recorded
// importance table. With no table recorded every feature passes through.
func (p *Processor) SelectImportantFeatures(features map[string]float64, topK int) map[string]float64 {
	if len(p.importance) == 0 || topK <= 0 {
		return features
	}

	order := make(map[string]int, len(p.importanceOrder))
	for i, name := range p.importanceOrder {
		order[name] = i
	}

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := p.importance[names[i]], p.importance[names[j]]
		if a != b {
			return a > b
		}
		return encounterRank(order, names[i]) < encounterRank(order, names[j])
	})

	if topK > len(names) {
		topK = len(names)
	}
	selected := make(map[string]float64, topK)
	for _, name := range names[:topK] {
		selected[name] = features[name]
	}
	return selected
}

func encounterRank(order map[string]int, name string) int {
	if rank, ok := order[name]; ok {
		return rank
	}
	return math.MaxInt32
}
