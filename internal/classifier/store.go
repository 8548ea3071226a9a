package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Artifact kinds used to round-trip the polymorphic model set through JSON
const (
	kindForest   = "forest"
	kindBoosted  = "boosted"
	kindLogistic = "logistic"
)

type modelArtifact struct {
	Family string          `json:"family"`
	Kind   string          `json:"kind"`
	Data   json.RawMessage `json:"data"`
}

type calibrationArtifact struct {
	Family     string              `json:"family"`
	Calibrator *IsotonicRegression `json:"calibrator"`
}

type ensembleArtifact struct {
	Names []string `json:"names"`
}

type metadataArtifact struct {
	FeatureNames []string                       `json:"feature_names"`
	History      []TrainingHistoryRecord        `json:"training_history"`
	Performance  map[string]*PerformanceMetrics `json:"performance"`
	Importances  map[string]map[string]float64  `json:"importances"`
	SavedAt      time.Time                      `json:"saved_at"`
}

// SaveModels persists every base model, every calibrated variant, the
// ensemble membership and the metadata bundle under a version-stamped
// directory, returning its path. Save failures propagate: a failed save
// must not be silently swallowed.
func (c *SpamClassifier) SaveModels(version string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.modelSet) == 0 {
		return "", fmt.Errorf("no trained models to save")
	}

	if version == "" {
		version = "v" + time.Now().UTC().Format("20060102T150405")
	}
	dir := filepath.Join(c.cfg.ModelPath, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	for family, model := range c.modelSet {
		artifact, err := marshalModel(family, model)
		if err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(dir, family+".json"), artifact); err != nil {
			return "", err
		}
	}

	for family, cal := range c.calibrated {
		artifact := calibrationArtifact{Family: family, Calibrator: cal.Calibrator}
		if err := writeJSON(filepath.Join(dir, family+".calibrated.json"), artifact); err != nil {
			return "", err
		}
	}

	if c.ensemble != nil {
		if err := writeJSON(filepath.Join(dir, "ensemble.json"), ensembleArtifact{Names: c.ensemble.Names}); err != nil {
			return "", err
		}
	}

	metadata := metadataArtifact{
		FeatureNames: c.featureNames,
		History:      c.history,
		Performance:  c.performance,
		Importances:  c.importances,
		SavedAt:      time.Now(),
	}
	if err := writeJSON(filepath.Join(dir, "metadata.json"), metadata); err != nil {
		return "", err
	}

	c.logger.Info("models saved",
		zap.String("path", dir),
		zap.Int("models", len(c.modelSet)),
		zap.Int("calibrated", len(c.calibrated)),
		zap.Bool("ensemble", c.ensemble != nil))

	return dir, nil
}

// LoadModels restores a saved model set. With an empty version it selects
// the most recently created version directory. Returns false when no saved
// models exist or the artifacts are unreadable, signaling callers to fall
// back to training on first use.
func (c *SpamClassifier) LoadModels(version string) bool {
	dir, err := c.resolveVersionDir(version)
	if err != nil {
		c.logger.Warn("no saved models to load", zap.Error(err))
		return false
	}

	var metadata metadataArtifact
	if err := readJSON(filepath.Join(dir, "metadata.json"), &metadata); err != nil {
		c.logger.Warn("failed to read model metadata", zap.String("path", dir), zap.Error(err))
		return false
	}

	modelSet := make(map[string]Classifier)
	for _, family := range baseModelFamilies {
		path := filepath.Join(dir, family+".json")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var artifact modelArtifact
		if err := readJSON(path, &artifact); err != nil {
			c.logger.Warn("failed to read model artifact", zap.String("path", path), zap.Error(err))
			return false
		}
		model, err := unmarshalModel(artifact)
		if err != nil {
			c.logger.Warn("failed to decode model artifact", zap.String("path", path), zap.Error(err))
			return false
		}
		modelSet[family] = model
	}
	if len(modelSet) == 0 {
		c.logger.Warn("model directory contains no model artifacts", zap.String("path", dir))
		return false
	}

	calibrated := make(map[string]*CalibratedClassifier)
	for family, model := range modelSet {
		path := filepath.Join(dir, family+".calibrated.json")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var artifact calibrationArtifact
		if err := readJSON(path, &artifact); err != nil {
			c.logger.Warn("failed to read calibration artifact", zap.String("path", path), zap.Error(err))
			return false
		}
		calibrated[family] = &CalibratedClassifier{
			Family:     family,
			Base:       model,
			Calibrator: artifact.Calibrator,
		}
	}

	var ensemble *VotingEnsemble
	ensemblePath := filepath.Join(dir, "ensemble.json")
	if _, err := os.Stat(ensemblePath); err == nil {
		var artifact ensembleArtifact
		if err := readJSON(ensemblePath, &artifact); err != nil {
			c.logger.Warn("failed to read ensemble artifact", zap.String("path", ensemblePath), zap.Error(err))
			return false
		}
		names := make([]string, 0, len(artifact.Names))
		members := make([]Classifier, 0, len(artifact.Names))
		for _, family := range artifact.Names {
			model, ok := modelSet[family]
			if !ok {
				c.logger.Warn("ensemble references missing model", zap.String("family", family))
				return false
			}
			names = append(names, family)
			members = append(members, model)
		}
		ensemble = NewVotingEnsemble(names, members)
	}

	c.mu.Lock()
	c.featureNames = metadata.FeatureNames
	c.modelSet = modelSet
	c.calibrated = calibrated
	c.ensemble = ensemble
	c.history = metadata.History
	c.performance = metadata.Performance
	if c.performance == nil {
		c.performance = make(map[string]*PerformanceMetrics)
	}
	c.importances = metadata.Importances
	if c.importances == nil {
		c.importances = make(map[string]map[string]float64)
	}
	c.mu.Unlock()

	c.logger.Info("models loaded",
		zap.String("path", dir),
		zap.Int("models", len(modelSet)),
		zap.Int("calibrated", len(calibrated)),
		zap.Bool("ensemble", ensemble != nil))

	return true
}

// resolveVersionDir maps a version name to its directory, defaulting to the
// most recently modified version under the model path
func (c *SpamClassifier) resolveVersionDir(version string) (string, error) {
	if version != "" {
		dir := filepath.Join(c.cfg.ModelPath, version)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("model version %q not found", version)
		}
		return dir, nil
	}

	entries, err := os.ReadDir(c.cfg.ModelPath)
	if err != nil {
		return "", fmt.Errorf("model path unreadable: %w", err)
	}

	var latest string
	var latestTime time.Time
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = entry.Name()
			latestTime = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no model versions under %s", c.cfg.ModelPath)
	}
	return filepath.Join(c.cfg.ModelPath, latest), nil
}

func marshalModel(family string, model Classifier) (*modelArtifact, error) {
	var kind string
	switch model.(type) {
	case *RandomForest:
		kind = kindForest
	case *BoostedTrees:
		kind = kindBoosted
	case *LogisticRegression:
		kind = kindLogistic
	default:
		return nil, fmt.Errorf("cannot serialize model of family %s", family)
	}

	data, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s model: %w", family, err)
	}
	return &modelArtifact{Family: family, Kind: kind, Data: data}, nil
}

func unmarshalModel(artifact modelArtifact) (Classifier, error) {
	switch artifact.Kind {
	case kindForest:
		model := &RandomForest{}
		return model, json.Unmarshal(artifact.Data, model)
	case kindBoosted:
		model := &BoostedTrees{}
		return model, json.Unmarshal(artifact.Data, model)
	case kindLogistic:
		model := &LogisticRegression{}
		return model, json.Unmarshal(artifact.Data, model)
	default:
		return nil, fmt.Errorf("unknown model artifact kind %q", artifact.Kind)
	}
}

func writeJSON(path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, value interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}
