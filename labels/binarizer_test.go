package labels

import (
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/ppgrid/dataset"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

func tableWith(t *testing.T, rows int, cols map[string][]dataset.Cell) *dataset.Table {
	t.Helper()
	table := dataset.NewTable(rows)
	for name, cells := range cols {
		if err := table.AddColumn(name, cells); err != nil {
			t.Fatalf("AddColumn(%s): %v", name, err)
		}
	}
	return table
}

func assertVector(t *testing.T, set *LabelSet, name string, want []float64) {
	t.Helper()
	got, ok := set.Values(name)
	if !ok {
		t.Fatalf("label %q missing", name)
	}
	if len(got) != len(want) {
		t.Fatalf("label %q length = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %q = %v, want %v", name, got, want)
			return
		}
	}
}

func TestBinarize_VehicleTypeScenario(t *testing.T) {
	table := tableWith(t, 4, map[string][]dataset.Cell{
		"vehicle_type": {{"car"}, nil, {"car", "van"}, {"bus"}},
	})

	set, err := Binarize(table, DefaultVocabulary())
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}

	assertVector(t, set, "car", []float64{1, 0, 1, 0})
	assertVector(t, set, "van", []float64{0, 0, 1, 0})
	assertVector(t, set, "bus", []float64{0, 0, 0, 1})
	assertVector(t, set, "others", []float64{0, 0, 0, 0})

	// columns absent from the table produce no labels
	if _, ok := set.Values("red"); ok {
		t.Error("color labels should not be produced without a color column")
	}
}

func TestBinarize_SpeedThresholds(t *testing.T) {
	table := tableWith(t, 5, map[string][]dataset.Cell{
		"speed": {
			{45.0},
			nil,
			{nil, 66.0},
			{30, 71.5},
			{nil},
		},
	})

	set, err := Binarize(table, DefaultVocabulary())
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}

	assertVector(t, set, ">40", []float64{1, 0, 1, 1, 0})
	assertVector(t, set, ">50", []float64{0, 0, 1, 1, 0})
	assertVector(t, set, ">60", []float64{0, 0, 1, 1, 0})
	assertVector(t, set, "<65", []float64{1, 0, 0, 1, 0})
	assertVector(t, set, "<70", []float64{1, 0, 1, 1, 0})
}

func TestBinarize_CategoricalSumProperty(t *testing.T) {
	vocab := DefaultVocabulary()
	subs := vocab.Categorical["intersection"]
	pool := append([]string{}, subs...)
	pool = append(pool, "pt999") // outside the vocabulary

	rng := rand.New(rand.NewSource(7))
	const rows = 200
	cells := make([]dataset.Cell, rows)
	for i := range cells {
		if rng.Intn(5) == 0 {
			continue // null
		}
		n := rng.Intn(4)
		cell := dataset.Cell{}
		for j := 0; j < n; j++ {
			if rng.Intn(6) == 0 {
				cell = append(cell, nil)
				continue
			}
			cell = append(cell, pool[rng.Intn(len(pool))])
		}
		cells[i] = cell
	}

	set, err := Binarize(tableWith(t, rows, map[string][]dataset.Cell{"intersection": cells}), vocab)
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}

	canonical := make(map[string]bool)
	for _, s := range subs {
		canonical[s] = true
	}
	for i, cell := range cells {
		distinct := make(map[string]bool)
		for _, r := range cell {
			if s, ok := r.(string); ok && canonical[s] {
				distinct[s] = true
			}
		}
		sum := 0.0
		for _, s := range subs {
			v, _ := set.Values(s)
			sum += v[i]
		}
		if int(sum) != len(distinct) {
			t.Fatalf("row %d: sum of labels = %v, distinct canonical sub-values = %d (cell %v)", i, sum, len(distinct), cell)
		}
	}
}

func TestBinarize_LessThan65Property(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const rows = 300
	cells := make([]dataset.Cell, rows)
	for i := range cells {
		if rng.Intn(6) == 0 {
			continue
		}
		n := rng.Intn(4)
		cell := dataset.Cell{}
		for j := 0; j < n; j++ {
			if rng.Intn(4) == 0 {
				cell = append(cell, nil)
				continue
			}
			cell = append(cell, 40+rng.Float64()*50)
		}
		cells[i] = cell
	}

	set, err := Binarize(tableWith(t, rows, map[string][]dataset.Cell{"speed": cells}), DefaultVocabulary())
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}
	got, _ := set.Values("<65")

	for i, cell := range cells {
		want := 0.0
		for _, r := range cell {
			if v, ok := r.(float64); ok && v < 65 {
				want = 1
			}
		}
		if got[i] != want {
			t.Fatalf("row %d: <65 = %v, want %v (cell %v)", i, got[i], want, cell)
		}
	}
}

func TestBinarize_VectorsHaveSampleLength(t *testing.T) {
	table := tableWith(t, 3, map[string][]dataset.Cell{
		"vehicle_type": {nil, nil, nil},
		"color":        {{"red"}, {"silver", "red"}, nil},
		"intersection": {{"pt208"}, nil, nil},
		"speed":        {nil, {55}, nil},
		"timestamp":    {{"a"}, {"b"}, {"c"}}, // not in vocabulary
	})

	set, err := Binarize(table, DefaultVocabulary())
	if err != nil {
		t.Fatalf("Binarize: %v", err)
	}
	if got, want := len(set.Names()), len(DefaultVocabulary().Labels()); got != want {
		t.Fatalf("labels = %d, want %d", got, want)
	}
	for _, name := range set.Names() {
		v, _ := set.Values(name)
		if len(v) != 3 {
			t.Errorf("label %q has length %d", name, len(v))
		}
	}
	assertVector(t, set, "red", []float64{1, 1, 0})
}

func TestVocabularyCollisionFails(t *testing.T) {
	vocab := Vocabulary{
		Categorical: map[string][]string{
			"vehicle_type": {"car", "van"},
			"body":         {"van", "coupe"},
		},
	}

	_, err := Binarize(dataset.NewTable(0), vocab)
	var cfgErr *errors.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestVocabularyCollisionAcrossKinds(t *testing.T) {
	vocab := Vocabulary{
		Categorical: map[string][]string{"size": {">40"}},
		Numeric:     map[string][]Rule{"speed": MustParseRules(">40")},
	}
	if err := vocab.Validate(); err == nil {
		t.Fatal("expected collision between categorical and numeric labels")
	}
}

func TestBinarize_NonNumericReadingFails(t *testing.T) {
	table := tableWith(t, 1, map[string][]dataset.Cell{"speed": {{"fast"}}})

	_, err := Binarize(table, DefaultVocabulary())
	var cfgErr *errors.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		expr    string
		op      Op
		thresh  float64
		probe   float64
		match   bool
		wantErr bool
	}{
		{expr: ">40", op: OpGreater, thresh: 40, probe: 40, match: false},
		{expr: ">=40", op: OpGreaterEqual, thresh: 40, probe: 40, match: true},
		{expr: "<65", op: OpLess, thresh: 65, probe: 64.9, match: true},
		{expr: "<= 70", op: OpLessEqual, thresh: 70, probe: 70, match: true},
		{expr: "==3", op: OpEqual, thresh: 3, probe: 3, match: true},
		{expr: "~40", wantErr: true},
		{expr: ">abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r, err := ParseRule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRule(%q) error = %v", tt.expr, err)
			}
			if tt.wantErr {
				return
			}
			if r.Op != tt.op || r.Threshold != tt.thresh {
				t.Errorf("ParseRule(%q) = %+v", tt.expr, r)
			}
			if r.Match(tt.probe) != tt.match {
				t.Errorf("Match(%v) = %v, want %v", tt.probe, !tt.match, tt.match)
			}
		})
	}
}

func TestLabelSetVector(t *testing.T) {
	set := NewLabelSet(2)
	if err := set.Add("car", []float64{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := set.Add("car", []float64{0, 0}); err == nil {
		t.Error("duplicate Add should fail")
	}
	if err := set.Add("van", []float64{1}); err == nil {
		t.Error("short vector should fail")
	}

	v, err := set.Vector("car")
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != 2 || v.AtVec(0) != 1 {
		t.Errorf("Vector = %v", v.RawVector().Data)
	}
	if _, err := set.Vector("bus"); err == nil {
		t.Error("unknown label should fail")
	}
}
