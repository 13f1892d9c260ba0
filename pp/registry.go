package pp

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/ppgrid/core/model"
)

// ScoreKey is the metric every evaluated entry carries.
const ScoreKey = "score"

// Metrics is the record kept for one evaluated model: the family's native
// score under ScoreKey plus any named metrics the family reports.
type Metrics map[string]float64

// Score returns the recorded score.
func (m Metrics) Score() float64 {
	return m[ScoreKey]
}

// table is a category → composite id → value map guarded by one lock.
type table[V any] struct {
	mu sync.RWMutex
	m  map[string]map[string]V
}

func newTable[V any]() *table[V] {
	return &table[V]{m: make(map[string]map[string]V)}
}

func (t *table[V]) put(category, id string, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inner, ok := t.m[category]
	if !ok {
		inner = make(map[string]V)
		t.m[category] = inner
	}
	inner[id] = v
}

func (t *table[V]) get(category, id string) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[category][id]
	return v, ok
}

// category returns a copy of the inner map.
func (t *table[V]) category(name string) (map[string]V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inner, ok := t.m[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]V, len(inner))
	for id, v := range inner {
		out[id] = v
	}
	return out, true
}

func (t *table[V]) categories() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.m))
	for name := range t.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *table[V]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, inner := range t.m {
		n += len(inner)
	}
	return n
}

// ModelEntry is one stored model.
type ModelEntry struct {
	Category    string
	CompositeID string
	Model       model.Classifier
}

// ModelRegistry holds trained models keyed by category (label name) and
// composite id. It is safe for concurrent use. Storing under an existing key
// replaces the previous model.
type ModelRegistry struct {
	t *table[model.Classifier]
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{t: newTable[model.Classifier]()}
}

// Put stores m under (category, id).
func (r *ModelRegistry) Put(category, id string, m model.Classifier) {
	r.t.put(category, id, m)
}

// Get returns the model stored under (category, id).
func (r *ModelRegistry) Get(category, id string) (model.Classifier, bool) {
	return r.t.get(category, id)
}

// Category returns a copy of the models stored for one category.
func (r *ModelRegistry) Category(name string) (map[string]model.Classifier, bool) {
	return r.t.category(name)
}

// Categories returns the category names in sorted order.
func (r *ModelRegistry) Categories() []string {
	return r.t.categories()
}

// Len returns the number of stored models.
func (r *ModelRegistry) Len() int {
	return r.t.len()
}

// Snapshot returns every stored model, sorted by category then id.
func (r *ModelRegistry) Snapshot() []ModelEntry {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()
	out := make([]ModelEntry, 0)
	for category, inner := range r.t.m {
		for id, m := range inner {
			out = append(out, ModelEntry{Category: category, CompositeID: id, Model: m})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].CompositeID < out[j].CompositeID
	})
	return out
}

// StatsRegistry holds evaluation metrics keyed like ModelRegistry. Entries
// are overwritten on re-evaluation and never expire.
type StatsRegistry struct {
	t *table[Metrics]
}

// NewStatsRegistry creates an empty registry.
func NewStatsRegistry() *StatsRegistry {
	return &StatsRegistry{t: newTable[Metrics]()}
}

// Put records m under (category, id), replacing any previous record.
func (r *StatsRegistry) Put(category, id string, m Metrics) {
	r.t.put(category, id, m)
}

// Get returns the metrics recorded under (category, id).
func (r *StatsRegistry) Get(category, id string) (Metrics, bool) {
	return r.t.get(category, id)
}

// Category returns a copy of the metrics recorded for one category.
func (r *StatsRegistry) Category(name string) (map[string]Metrics, bool) {
	return r.t.category(name)
}

// Categories returns the category names in sorted order.
func (r *StatsRegistry) Categories() []string {
	return r.t.categories()
}

// Len returns the number of recorded entries.
func (r *StatsRegistry) Len() int {
	return r.t.len()
}
