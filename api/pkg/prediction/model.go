package prediction

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	modelTypeLogisticRegression = "logistic_regression"
	modelTypeMostFrequent       = "dummy_most_frequent"
)

// oneHotEncoder maps the categorical feature values seen at fit time to
// indicator columns. Unknown categories at inference time encode to all
// zeros rather than failing.
type oneHotEncoder struct {
	timeSlots []string
	roomTypes []string
}

func fitEncoder(rows []featureRow) *oneHotEncoder {
	slotSet := map[string]struct{}{}
	typeSet := map[string]struct{}{}
	for _, row := range rows {
		slotSet[row.TimeSlot] = struct{}{}
		typeSet[row.RoomType] = struct{}{}
	}
	encoder := &oneHotEncoder{
		timeSlots: make([]string, 0, len(slotSet)),
		roomTypes: make([]string, 0, len(typeSet)),
	}
	for slot := range slotSet {
		encoder.timeSlots = append(encoder.timeSlots, slot)
	}
	for roomType := range typeSet {
		encoder.roomTypes = append(encoder.roomTypes, roomType)
	}
	sort.Strings(encoder.timeSlots)
	sort.Strings(encoder.roomTypes)
	return encoder
}

// width is the encoded feature dimension: one-hot slots, one-hot room
// types, then the three numeric features.
func (e *oneHotEncoder) width() int {
	return len(e.timeSlots) + len(e.roomTypes) + 3
}

func (e *oneHotEncoder) encode(row featureRow) []float64 {
	encoded := make([]float64, e.width())
	for i, slot := range e.timeSlots {
		if slot == row.TimeSlot {
			encoded[i] = 1
			break
		}
	}
	offset := len(e.timeSlots)
	for i, roomType := range e.roomTypes {
		if roomType == row.RoomType {
			encoded[offset+i] = 1
			break
		}
	}
	offset += len(e.roomTypes)
	encoded[offset] = float64(row.DayOfWeek)
	encoded[offset+1] = row.HistoricalOccupancyFrequency
	encoded[offset+2] = row.RollingWindowOccupancyAverage
	return encoded
}

// classifier produces P(occupied) for one encoded feature vector.
type classifier interface {
	modelType() string
	occupancyProbability(features []float64) float64
}

// constantClassifier predicts the majority class probability. Used when the
// training labels contain a single class.
type constantClassifier struct {
	probability float64
}

func (c *constantClassifier) modelType() string {
	return modelTypeMostFrequent
}

func (c *constantClassifier) occupancyProbability([]float64) float64 {
	return c.probability
}

func fitMostFrequent(labels []int) *constantClassifier {
	occupied := 0
	for _, label := range labels {
		occupied += label
	}
	if occupied*2 >= len(labels) {
		return &constantClassifier{probability: 1}
	}
	return &constantClassifier{probability: 0}
}

// logisticClassifier is a binary logistic regression with an intercept,
// fitted by iteratively reweighted least squares. The fit is deterministic:
// zero initial weights, fixed iteration cap, no data shuffling.
type logisticClassifier struct {
	weights   []float64
	intercept float64
}

func (l *logisticClassifier) modelType() string {
	return modelTypeLogisticRegression
}

func (l *logisticClassifier) occupancyProbability(features []float64) float64 {
	z := l.intercept
	for i, w := range l.weights {
		z += w * features[i]
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// ridge keeps the IRLS normal equations solvable when one-hot columns are
// collinear.
const irlsRidge = 1e-6

func fitLogisticRegression(features [][]float64, labels []int, maxIter int) (*logisticClassifier, error) {
	rows := len(features)
	if rows == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	cols := len(features[0]) + 1 // leading intercept column

	x := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for i, row := range features {
		x.Set(i, 0, 1)
		for j, value := range row {
			x.Set(i, j+1, value)
		}
		y.SetVec(i, float64(labels[i]))
	}

	beta := mat.NewVecDense(cols, nil)
	probs := mat.NewVecDense(rows, nil)

	for iter := 0; iter < maxIter; iter++ {
		var linear mat.VecDense
		linear.MulVec(x, beta)
		for i := 0; i < rows; i++ {
			probs.SetVec(i, sigmoid(linear.AtVec(i)))
		}

		// weighted design: W X with W = diag(p(1-p)), floored so the
		// Hessian never degenerates once probabilities saturate
		wx := mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			p := probs.AtVec(i)
			w := p * (1 - p)
			if w < 1e-9 {
				w = 1e-9
			}
			for j := 0; j < cols; j++ {
				wx.Set(i, j, w*x.At(i, j))
			}
		}

		var hessian mat.Dense
		hessian.Mul(x.T(), wx)
		for j := 0; j < cols; j++ {
			hessian.Set(j, j, hessian.At(j, j)+irlsRidge)
		}

		residual := mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			residual.SetVec(i, y.AtVec(i)-probs.AtVec(i))
		}
		var gradient mat.VecDense
		gradient.MulVec(x.T(), residual)

		var step mat.VecDense
		if err := step.SolveVec(&hessian, &gradient); err != nil {
			return nil, fmt.Errorf("IRLS normal equations are singular: %w", err)
		}

		maxDelta := 0.0
		for j := 0; j < cols; j++ {
			delta := step.AtVec(j)
			beta.SetVec(j, beta.AtVec(j)+delta)
			if abs := math.Abs(delta); abs > maxDelta {
				maxDelta = abs
			}
		}
		if maxDelta < 1e-8 {
			break
		}
	}

	weights := make([]float64, cols-1)
	for j := 1; j < cols; j++ {
		weights[j-1] = beta.AtVec(j)
	}
	return &logisticClassifier{weights: weights, intercept: beta.AtVec(0)}, nil
}
