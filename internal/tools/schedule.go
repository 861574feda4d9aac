package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobSummary is a lightweight view of a scheduled job used by the tool.
type JobSummary struct {
	ID   string
	Name string
	Kind string
}

// Scheduler is the interface the ScheduleTool uses to manage jobs. The
// concrete implementation lives in internal/cron.
type Scheduler interface {
	AddJob(name, message, kind string, everyMs int64, cronExpr, tz string, atMs int64,
		deliver bool, channel, to string, deleteAfterRun bool) (string, error)
	ListJobs() []JobSummary
	RemoveJob(id string) bool
}

// ScheduleTool allows the agent to schedule reminders and recurring tasks.
// Delivery routing is read from the TurnContext.
type ScheduleTool struct {
	svc Scheduler
}

// NewScheduleTool creates a ScheduleTool backed by the given scheduler.
func NewScheduleTool(svc Scheduler) *ScheduleTool {
	return &ScheduleTool{svc: svc}
}

func (t *ScheduleTool) Name() string { return "schedule" }

func (t *ScheduleTool) Description() string {
	return "Schedule reminders and recurring tasks. Actions: add, list, remove."
}

func (t *ScheduleTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["add", "list", "remove"],
				"description": "Action to perform"
			},
			"message": {
				"type": "string",
				"description": "Reminder message (for add)"
			},
			"every_seconds": {
				"type": "integer",
				"description": "Interval in seconds (for recurring tasks)"
			},
			"cron_expr": {
				"type": "string",
				"description": "Cron expression like '0 9 * * *' (for scheduled tasks)"
			},
			"tz": {
				"type": "string",
				"description": "IANA timezone for cron expressions (e.g. 'America/Vancouver')"
			},
			"at": {
				"type": "string",
				"description": "ISO datetime for one-time execution (e.g. '2026-09-12T10:30:00')"
			},
			"job_id": {
				"type": "string",
				"description": "Job ID (for remove)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *ScheduleTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	action, _ := params["action"].(string)
	switch action {
	case "add":
		return t.addJob(ctx, params), nil
	case "list":
		return t.listJobs(), nil
	case "remove":
		return t.removeJob(params), nil
	default:
		return fmt.Sprintf("Unknown action: %s", action), nil
	}
}

func (t *ScheduleTool) addJob(ctx context.Context, params map[string]any) string {
	message, _ := params["message"].(string)
	if message == "" {
		return "Error: message is required for add"
	}
	tc := TurnCtx(ctx)
	if tc.Channel == "" || tc.ChatID == "" {
		return "Error: no session context (channel/chat_id)"
	}

	var kind string
	var everyMs, atMs int64
	var cronExpr, tz string
	deleteAfterRun := false

	if v, ok := numericToInt64(params["every_seconds"]); ok && v > 0 {
		kind = "every"
		everyMs = v * 1000
	} else if expr, ok := params["cron_expr"].(string); ok && expr != "" {
		kind = "cron"
		cronExpr = expr
		if tzVal, ok := params["tz"].(string); ok {
			tz = tzVal
		}
	} else if atStr, ok := params["at"].(string); ok && atStr != "" {
		dt, err := time.Parse(time.RFC3339, atStr)
		if err != nil {
			dt, err = time.ParseInLocation("2006-01-02T15:04:05", atStr, time.Local)
			if err != nil {
				return fmt.Sprintf("Error: invalid 'at' datetime %q: %v", atStr, err)
			}
		}
		kind = "at"
		atMs = dt.UnixMilli()
		deleteAfterRun = true
	} else {
		return "Error: one of every_seconds, cron_expr, or at is required"
	}

	name := message
	if len(name) > 40 {
		name = name[:40]
	}
	id, err := t.svc.AddJob(name, message, kind, everyMs, cronExpr, tz, atMs,
		true, tc.Channel, tc.ChatID, deleteAfterRun)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Scheduled job %s (%s)", id, kind)
}

func (t *ScheduleTool) listJobs() string {
	jobs := t.svc.ListJobs()
	if len(jobs) == 0 {
		return "No scheduled jobs."
	}
	var sb strings.Builder
	for _, j := range jobs {
		sb.WriteString(fmt.Sprintf("- %s [%s] %s\n", j.ID, j.Kind, j.Name))
	}
	return sb.String()
}

func (t *ScheduleTool) removeJob(params map[string]any) string {
	id, _ := params["job_id"].(string)
	if id == "" {
		return "Error: job_id is required for remove"
	}
	if t.svc.RemoveJob(id) {
		return fmt.Sprintf("Removed job %s", id)
	}
	return fmt.Sprintf("Job %s not found", id)
}

func numericToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
