package anthropic

// Task identifies the workflow a completion serves. Drafting tasks get the
// stronger chain; light tasks get the cheap chain.
type Task string

const (
	TaskSuggest Task = "suggest"
	TaskSummary Task = "summary"
	TaskWeekly  Task = "weekly"
	TaskReply   Task = "reply"
	TaskEdit    Task = "edit"
	TaskScan    Task = "scan"
)

// sonnetChain is the chain for core content generation, strongest first
var sonnetChain = []string{
	"claude-3-5-sonnet-20241022",
	"claude-3-5-sonnet-latest",
	"claude-3-opus-latest",
	"claude-3-5-haiku-20241022",
	"claude-3-haiku-20240307",
}

// haikuChain is the chain for lighter tasks, cheapest first
var haikuChain = []string{
	"claude-3-5-haiku-20241022",
	"claude-3-haiku-20240307",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-sonnet-latest",
}

// ChooseModels returns the ordered model fallback chain for a task.
// A non-empty override pins a single model and disables fallback.
func ChooseModels(task Task, override string) []string {
	if override != "" {
		return []string{override}
	}

	switch task {
	case TaskSuggest, TaskSummary, TaskWeekly:
		return sonnetChain
	default:
		return haikuChain
	}
}
