package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported objectives grouped by their output transform
var (
	identityObjectives = map[string]bool{
		"reg:squarederror":     true,
		"reg:linear":           true,
		"reg:absoluteerror":    true,
		"reg:pseudohubererror": true,
		"reg:squaredlogerror":  true,
	}
	logLinkObjectives = map[string]bool{
		"reg:gamma":     true,
		"reg:tweedie":   true,
		"count:poisson": true,
	}
)

// XGBoostModel evaluates a gradient boosted tree ensemble saved in the XGBoost
// JSON model format
type XGBoostModel struct {
	name     string
	features []string
	margin   float64
	logLink  bool
	trees    []tree
}

type tree struct {
	left        []int
	right       []int
	split       []int
	threshold   []float32
	leafValue   []float64
	defaultLeft []bool
}

type xgbDocument struct {
	Learner struct {
		FeatureNames      []string `json:"feature_names"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
			NumClass   string `json:"num_class"`
			NumTarget  string `json:"num_target"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []xgbTree `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flexBools `json:"default_left"`
	SplitType       []int     `json:"split_type"`
}

// flexBools accepts both the integer and boolean encodings of default_left
type flexBools []bool

func (f *flexBools) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch s := string(bytes.TrimSpace(r)); s {
		case "true", "1":
			out[i] = true
		case "false", "0":
			out[i] = false
		default:
			return fmt.Errorf("invalid default_left value %s", s)
		}
	}
	*f = out
	return nil
}

// LoadXGBoostModel reads a model file. features overrides the feature names
// stored in the file, for models trained without named columns.
func LoadXGBoostModel(path, name string, features []string) (*XGBoostModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()
	return ParseXGBoostModel(f, name, features)
}

// ParseXGBoostModel decodes a model from r
func ParseXGBoostModel(r io.Reader, name string, features []string) (*XGBoostModel, error) {
	var doc xgbDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	learner := doc.Learner

	if booster := learner.GradientBooster.Name; booster != "gbtree" {
		return nil, fmt.Errorf("%w: unsupported booster %q", ErrInvalidModel, booster)
	}
	for _, p := range []string{learner.LearnerModelParam.NumClass, learner.LearnerModelParam.NumTarget} {
		if n, _ := strconv.Atoi(p); n > 1 {
			return nil, fmt.Errorf("%w: multi-output models are not supported", ErrInvalidModel)
		}
	}

	objective := learner.Objective.Name
	if !identityObjectives[objective] && !logLinkObjectives[objective] {
		return nil, fmt.Errorf("%w: unsupported objective %q", ErrInvalidModel, objective)
	}

	base, err := parseBaseScore(learner.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, err
	}

	names := learner.FeatureNames
	if len(features) > 0 {
		names = features
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: model has no feature names", ErrInvalidModel)
	}
	if n, err := strconv.Atoi(learner.LearnerModelParam.NumFeature); err == nil && n != len(names) {
		return nil, fmt.Errorf("%w: model has %d features but %d names", ErrInvalidModel, n, len(names))
	}

	m := &XGBoostModel{
		name:     name,
		features: append([]string(nil), names...),
		margin:   base,
		logLink:  logLinkObjectives[objective],
	}
	if m.logLink {
		if base <= 0 {
			return nil, fmt.Errorf("%w: base_score %v is invalid for %s", ErrInvalidModel, base, objective)
		}
		m.margin = math.Log(base)
	}

	for i, t := range learner.GradientBooster.Model.Trees {
		compiled, err := compileTree(t, len(names))
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrInvalidModel, i, err)
		}
		m.trees = append(m.trees, compiled)
	}
	if len(m.trees) == 0 {
		return nil, fmt.Errorf("%w: model has no trees", ErrInvalidModel)
	}

	return m, nil
}

// parseBaseScore handles both "5E-1" and the bracketed "[5E-1]" form
func parseBaseScore(s string) (float64, error) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if s == "" {
		return 0.5, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid base_score %q", ErrInvalidModel, s)
	}
	return v, nil
}

func compileTree(t xgbTree, numFeatures int) (tree, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n || len(t.DefaultLeft) != n {
		return tree{}, fmt.Errorf("node arrays have different lengths")
	}
	for _, st := range t.SplitType {
		if st != 0 {
			return tree{}, fmt.Errorf("categorical splits are not supported")
		}
	}
	for i := 0; i < n; i++ {
		l, r := t.LeftChildren[i], t.RightChildren[i]
		if l == -1 {
			continue
		}
		// Children always follow their parent, which also rules out cycles
		if l <= i || r <= i || l >= n || r >= n {
			return tree{}, fmt.Errorf("node %d has invalid children %d and %d", i, l, r)
		}
		if idx := t.SplitIndices[i]; idx < 0 || idx >= numFeatures {
			return tree{}, fmt.Errorf("node %d splits on feature %d of %d", i, idx, numFeatures)
		}
	}
	threshold := make([]float32, n)
	for i, c := range t.SplitConditions {
		threshold[i] = float32(c)
	}
	return tree{
		left:        t.LeftChildren,
		right:       t.RightChildren,
		split:       t.SplitIndices,
		threshold:   threshold,
		leafValue:   t.SplitConditions,
		defaultLeft: t.DefaultLeft,
	}, nil
}

// leaf walks the tree for one row. Missing values follow the default branch.
// Inputs and split conditions compare as float32, matching XGBoost.
func (t *tree) leaf(x []float64) float64 {
	n := 0
	for t.left[n] != -1 {
		v := x[t.split[n]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[n] {
				n = t.left[n]
			} else {
				n = t.right[n]
			}
		case float32(v) < t.threshold[n]:
			n = t.left[n]
		default:
			n = t.right[n]
		}
	}
	return t.leafValue[n]
}

// Name returns the model name
func (m *XGBoostModel) Name() string {
	return m.name
}

// FeatureNames returns the ordered feature names
func (m *XGBoostModel) FeatureNames() []string {
	return m.features
}

// NumTrees returns the ensemble size
func (m *XGBoostModel) NumTrees() int {
	return len(m.trees)
}

// Predict evaluates the ensemble for one row
func (m *XGBoostModel) Predict(_ context.Context, features []float64) (float64, error) {
	if err := checkFeatureCount(m, features); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() {
		MLPredictionLatency.WithLabelValues("xgboost").Observe(time.Since(start).Seconds())
	}()

	sum := m.margin
	for i := range m.trees {
		sum += m.trees[i].leaf(features)
	}
	MLPredictionsTotal.WithLabelValues("xgboost", "false").Inc()

	if m.logLink {
		return math.Exp(sum), nil
	}
	return sum, nil
}
