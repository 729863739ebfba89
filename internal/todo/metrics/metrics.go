package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the todo module.
type Metrics struct {
	TodosCreated prometheus.Counter
	TodosDeleted prometheus.Counter
	TodoUpdates  *prometheus.CounterVec
	TagsCreated  prometheus.Counter
	TagsDeleted  prometheus.Counter
	ListDuration prometheus.Histogram
	AccessDenied *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the todo metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TodosCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_todos_created_total",
			Help: "Total number of todos created",
		}),
		TodosDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_todos_deleted_total",
			Help: "Total number of todos deleted",
		}),
		TodoUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_todo_updates_total",
			Help: "Todo updates by resulting status",
		}, []string{"status"}),
		TagsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_tags_created_total",
			Help: "Total number of tags created",
		}),
		TagsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_tags_deleted_total",
			Help: "Total number of tags deleted",
		}),
		ListDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskboard_todo_list_duration_seconds",
			Help:    "Duration of todo list queries including tag hydration",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		AccessDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_todo_access_denied_total",
			Help: "Requests for another user's todo or tag, by resource",
		}, []string{"resource"}),
	}
}

func (m *Metrics) IncrementTodosCreated() {
	m.TodosCreated.Inc()
}

func (m *Metrics) IncrementTodosDeleted() {
	m.TodosDeleted.Inc()
}

func (m *Metrics) IncrementTodoUpdated(status string) {
	m.TodoUpdates.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementTagsCreated() {
	m.TagsCreated.Inc()
}

func (m *Metrics) IncrementTagsDeleted() {
	m.TagsDeleted.Inc()
}

func (m *Metrics) IncrementAccessDenied(resource string) {
	m.AccessDenied.WithLabelValues(resource).Inc()
}

// ObserveList records the time since start.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
