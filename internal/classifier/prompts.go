// ABOUTME: Loaders for the classification prompt file and the few-shot example file.
// ABOUTME: Both files are JSON5 so operators can annotate prompts with comments.

package classifier

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// LoadPrompts reads a file mapping prompt names to prompt text, such as
//
//	{ intent: "Classify the user's request as one of: Hello, Jira Support Ticket." }
func LoadPrompts(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	var prompts map[string]string
	if err := json5.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("parsing prompts file %s: %w", path, err)
	}
	return prompts, nil
}

// Prompt returns the named prompt from a prompts file.
func Prompt(path, name string) (string, error) {
	prompts, err := LoadPrompts(path)
	if err != nil {
		return "", err
	}
	p, ok := prompts[name]
	if !ok || p == "" {
		return "", fmt.Errorf("prompt %q not found in %s", name, path)
	}
	return p, nil
}

// LoadExamples reads an ordered list of {role, content} few-shot messages.
// An empty path yields no examples.
func LoadExamples(path string) ([]Example, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading examples file: %w", err)
	}
	var examples []Example
	if err := json5.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("parsing examples file %s: %w", path, err)
	}
	if err := validateExamples(examples, RoleSystem, RoleUser, RoleAssistant); err != nil {
		return nil, fmt.Errorf("examples file %s: %w", path, err)
	}
	return examples, nil
}
