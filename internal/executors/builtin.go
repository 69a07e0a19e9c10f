package executors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	BackupBucket string
	DeployAPIKey string
	HTTPClient   *http.Client
	Now          func() time.Time
}

// NewDefaultRegistry wires the built-in executors.
func NewDefaultRegistry(opts Options, logger logrus.FieldLogger) (*Registry, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.BackupBucket == "" {
		opts.BackupBucket = "backups"
	}

	r := NewRegistry(logger)

	regs := []struct {
		taskType string
		executor Executor
		schema   string
	}{
		{TypeBackupDatabase, &BackupExecutor{Bucket: opts.BackupBucket, Now: opts.Now, logger: logger}, backupSchema},
		{TypeDeploySite, &DeployExecutor{APIKey: opts.DeployAPIKey, Now: opts.Now, logger: logger}, deploySchema},
		{TypeMonitorUptime, &UptimeExecutor{Client: opts.HTTPClient, Now: opts.Now}, uptimeSchema},
		{TypeCustomerOnboarding, &OnboardingExecutor{logger: logger}, onboardingSchema},
	}
	for _, reg := range regs {
		if err := r.Register(reg.taskType, reg.executor, reg.schema); err != nil {
			return nil, err
		}
	}

	return r, nil
}

const backupSchema = `{
	"type": "object",
	"properties": {
		"database": {"type": "string"},
		"retention_days": {"type": "integer", "minimum": 1}
	}
}`

type BackupExecutor struct {
	Bucket string
	Now    func() time.Time
	logger logrus.FieldLogger
}

func (e *BackupExecutor) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	database, _ := config["database"].(string)
	if database == "" {
		database = "primary"
	}

	now := e.Now().UTC()
	location := fmt.Sprintf("s3://%s/db-backup-%s-%d", e.Bucket, database, now.Unix())
	e.logger.WithFields(logrus.Fields{"database": database, "location": location}).Info("database backup written")

	return map[string]any{
		"status":          "completed",
		"database":        database,
		"backup_location": location,
		"timestamp":       now.Format(time.RFC3339),
	}, nil
}

const deploySchema = `{
	"type": "object",
	"properties": {
		"domain": {"type": "string"},
		"repo": {"type": "string"},
		"branch": {"type": "string"},
		"environment": {"type": "string"}
	}
}`

var ErrDeployCredentialsMissing = errors.New("deploy API key not configured")

type DeployExecutor struct {
	APIKey string
	Now    func() time.Time
	logger logrus.FieldLogger
}

func (e *DeployExecutor) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	if e.APIKey == "" {
		return nil, ErrDeployCredentialsMissing
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domain, _ := config["domain"].(string)
	if domain == "" {
		domain = "example.com"
	}
	e.logger.WithField("domain", domain).Info("site deployed")

	return map[string]any{
		"status":          "deployed",
		"url":             "https://" + domain,
		"deployment_time": e.Now().UTC().Format(time.RFC3339),
	}, nil
}

const uptimeSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "pattern": "^https?://"},
		"interval": {"type": "string"}
	},
	"required": ["url"]
}`

// UptimeExecutor probes a URL with HEAD. An unreachable target is a valid
// observation, reported as "offline" rather than as an executor error.
type UptimeExecutor struct {
	Client *http.Client
	Now    func() time.Time
}

func (e *UptimeExecutor) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	url, _ := config["url"].(string)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build uptime request: %w", err)
	}

	start := e.Now()
	resp, err := e.Client.Do(req)
	if err != nil {
		return map[string]any{
			"status":     "offline",
			"url":        url,
			"error":      err.Error(),
			"checked_at": e.Now().UTC().Format(time.RFC3339),
		}, nil
	}
	defer resp.Body.Close()

	return map[string]any{
		"status":           "online",
		"url":              url,
		"http_status":      resp.StatusCode,
		"response_time_ms": e.Now().Sub(start).Milliseconds(),
		"checked_at":       e.Now().UTC().Format(time.RFC3339),
	}, nil
}

const onboardingSchema = `{
	"type": "object",
	"properties": {
		"user_email": {"type": "string"},
		"customer_id": {"type": "string"},
		"trial_id": {"type": "string"},
		"service_id": {"type": "string"}
	},
	"required": ["user_email"]
}`

var onboardingSteps = []string{"create_workspace", "setup_domain", "configure_email", "send_welcome_email"}

type OnboardingExecutor struct {
	logger logrus.FieldLogger
}

func (e *OnboardingExecutor) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	steps := make([]map[string]any, 0, len(onboardingSteps))
	for _, name := range onboardingSteps {
		steps = append(steps, map[string]any{"name": name, "status": "pending"})
	}
	e.logger.WithField("user_email", config["user_email"]).Info("customer onboarding initiated")

	return map[string]any{
		"status":  "initiated",
		"steps":   steps,
		"message": "Customer onboarding process initiated",
	}, nil
}
