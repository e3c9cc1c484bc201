package core

import (
	"strings"
)

// StageMessages builds the opening conversation for a task: the agent
// persona as the system turn, the task and its context records as the user
// turn.
func StageMessages(t Task, contexts []Context) []Message {
	system := SystemText(
		"You are "+t.Agent.Role+".",
		t.Agent.Backstory,
		"Your personal goal is: "+t.Agent.Goal,
	)

	var b strings.Builder
	b.WriteString("Current task: ")
	b.WriteString(strings.TrimSpace(t.Description))
	if eo := strings.TrimSpace(t.ExpectedOutput); eo != "" {
		b.WriteString("\n\nThis is the expected criteria for your final answer: ")
		b.WriteString(eo)
	}
	if len(contexts) > 0 {
		b.WriteString("\n\nThis is the context you're working with:")
		for _, c := range contexts {
			b.WriteString("\n\n")
			b.WriteString(c.String())
		}
	}
	if len(t.Agent.Tools) > 0 {
		b.WriteString("\n\nYou may call the available tools before answering.")
	}
	b.WriteString("\n\nRespond with your complete final answer in Markdown.")

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: b.String()},
	}
}
