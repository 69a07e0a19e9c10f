package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"

	"ops-task-service.com/ops-task-service/internal/validation"
)

const (
	TypeBackupDatabase     = "backup_database"
	TypeDeploySite         = "deploy_site"
	TypeMonitorUptime      = "monitor_uptime"
	TypeCustomerOnboarding = "customer_onboarding"
)

// ErrManualProcessing is returned for task types nobody registered an
// executor for. Such tasks stay running until an operator reports back.
var ErrManualProcessing = errors.New("task type queued for manual processing")

// Executor performs the side effect named by a task type. Config has already
// been validated against the schema the executor was registered with.
type Executor interface {
	Execute(ctx context.Context, config map[string]any) (map[string]any, error)
}

type ExecutorFunc func(ctx context.Context, config map[string]any) (map[string]any, error)

func (f ExecutorFunc) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	return f(ctx, config)
}

type registration struct {
	executor Executor
	schema   *jsonschema.Schema
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	logger  logrus.FieldLogger
}

func NewRegistry(logger logrus.FieldLogger) *Registry {
	return &Registry{
		entries: make(map[string]registration),
		logger:  logger,
	}
}

// Register binds taskType to executor. An empty schemaJSON skips config
// validation for that type.
func (r *Registry) Register(taskType string, executor Executor, schemaJSON string) error {
	var sch *jsonschema.Schema
	if schemaJSON != "" {
		compiled, err := validation.Compile(taskType+".json", schemaJSON)
		if err != nil {
			return err
		}
		sch = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[taskType] = registration{executor: executor, schema: sch}
	r.logger.WithField("task_type", taskType).Debug("registered executor")
	return nil
}

func (r *Registry) Has(taskType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[taskType]
	return ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	return types
}

func (r *Registry) Execute(ctx context.Context, taskType string, config map[string]any) (map[string]any, error) {
	r.mu.RLock()
	entry, ok := r.entries[taskType]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrManualProcessing
	}

	if err := validation.ValidateMap(entry.schema, config); err != nil {
		return nil, fmt.Errorf("invalid config for %s: %w", taskType, err)
	}

	return entry.executor.Execute(ctx, config)
}
