package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// BuildEnvironmentContext generates the structured environment context
// block for the system prompt.
func BuildEnvironmentContext(env ExecutionEnvironment, model string) string {
	workingDir := env.WorkingDirectory()
	isGitRepo := isGitRepository(workingDir)

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if isGitRepo {
		if branch := getGitBranch(workingDir); branch != "" {
			fmt.Fprintf(&sb, "Git branch: %s\n", branch)
		}
	}
	fmt.Fprintf(&sb, "Platform: %s\n", env.Platform())
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs finds and loads project instruction files, walking
// from the git root (or working directory) down to the working directory.
// Total content is capped at 32KB.
func DiscoverProjectDocs(workingDir string, providerFilter string) string {
	root := gitRoot(workingDir)
	if root == "" {
		root = workingDir
	}

	recognizedFiles := []string{"AGENTS.md"}
	switch providerFilter {
	case "anthropic":
		recognizedFiles = append(recognizedFiles, "CLAUDE.md")
	case "openai":
		recognizedFiles = append(recognizedFiles, ".codex/instructions.md")
	}

	var docs []string
	totalBytes := 0

	for _, dir := range collectPathHierarchy(root, workingDir) {
		for _, fileName := range recognizedFiles {
			content, err := os.ReadFile(filepath.Join(dir, fileName))
			if err != nil {
				continue
			}

			remaining := maxProjectDocBytes - totalBytes
			if remaining <= 0 {
				docs = append(docs, "[Project instructions truncated at 32KB]")
				return strings.Join(docs, "\n\n---\n\n")
			}

			text := string(content)
			if len(text) > remaining {
				text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
			}

			header := fmt.Sprintf("# %s (from %s)", fileName, dir)
			docs = append(docs, header+"\n\n"+text)
			totalBytes += len(text)
		}
	}

	if len(docs) == 0 {
		return ""
	}
	return strings.Join(docs, "\n\n---\n\n")
}

// GetGitContext returns a summary of the git state for the system prompt.
func GetGitContext(workingDir string) string {
	root := gitRoot(workingDir)
	if root == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<git_context>\n")

	if branch := getGitBranch(root); branch != "" {
		fmt.Fprintf(&sb, "Branch: %s\n", branch)
	}

	if status := runGitCommand(root, "status", "--short"); status != "" {
		lines := strings.Split(strings.TrimSpace(status), "\n")
		fmt.Fprintf(&sb, "Modified/untracked files: %d\n", len(lines))
	}

	if log := runGitCommand(root, "log", "--oneline", "-10"); log != "" {
		sb.WriteString("Recent commits:\n")
		sb.WriteString(log)
		sb.WriteString("\n")
	}

	sb.WriteString("</git_context>")
	return sb.String()
}

// collectPathHierarchy returns directories from root to target, inclusive.
func collectPathHierarchy(root, target string) []string {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	dirs := []string{root}
	if root == target {
		return dirs
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return dirs
	}

	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func isGitRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func gitRoot(dir string) string {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--show-toplevel"))
}

func getGitBranch(dir string) string {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--abbrev-ref", "HEAD"))
}

func runGitCommand(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}
