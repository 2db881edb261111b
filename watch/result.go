package watch

import "time"

// ActionOutcome captures a single action invocation verbatim. A non-zero
// ExitCode is data, not an error: the action ran and failed.
type ActionOutcome struct {
	PromptUsed  string    `json:"prompt_used"`
	WorkingDir  string    `json:"working_dir"`
	ExitCode    int       `json:"exit_code"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
	CompletedAt time.Time `json:"completed_at"`
}

// Result is the durable artifact of a fired watch, written once to
// results/{watch_id}.json. Ownership passes to whatever external process
// consumes and archives result files.
type Result struct {
	WatchID        string         `json:"watch_id"`
	Trigger        string         `json:"trigger"`
	Params         []string       `json:"params"`
	TriggerPayload map[string]any `json:"trigger_payload"`
	Action         ActionOutcome  `json:"action"`
	FiredAt        time.Time      `json:"fired_at"`
}
