package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evanfuller/autoloop/feature"
	"github.com/evanfuller/autoloop/featureapi"
	"github.com/evanfuller/autoloop/llm"
)

// RegisterFeatureTools registers the feature queue tools on a Registry.
// They go through the feature API client, so the model sees the same
// behavior the API documents: list pages capped at 5, skip rejected for
// passing features, next returning the lowest-priority pending feature.
func RegisterFeatureTools(reg *Registry, client *featureapi.Client) {
	registerFeatureNext(reg, client)
	registerFeatureList(reg, client)
	registerFeatureMarkPassing(reg, client)
	registerFeatureSkip(reg, client)
	registerFeatureBulkCreate(reg, client)
	registerFeatureStats(reg, client)
}

func featureJSON(v interface{}) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode feature response: %w", err)
	}
	return string(out), nil
}

func registerFeatureNext(reg *Registry, client *featureapi.Client) {
	reg.Register(Tool{
		Definition: llm.ToolDefinition{
			Name: "feature_next",
			Description: "Get the highest-priority feature that is not yet passing. " +
				"Work on this feature next. Returns its description and verification steps.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		Run: func(ctx context.Context, _ json.RawMessage, _ ExecutionEnvironment) (string, error) {
			f, err := client.Next(ctx)
			if errors.Is(err, feature.ErrNoPending) {
				return "All features are passing! No more work to do.", nil
			}
			if err != nil {
				return "", err
			}
			return featureJSON(f)
		},
	})
}

func registerFeatureList(reg *Registry, client *featureapi.Client) {
	reg.Register(Tool{
		Definition: llm.ToolDefinition{
			Name: "feature_list",
			Description: "List features with pagination and filtering. Returns at most 5 features per call. " +
				"Set random=true with passes=true to sample passing features for regression testing.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum features to return (1-5). Default: 5.",
					},
					"offset": map[string]interface{}{
						"type":        "integer",
						"description": "Number of features to skip.",
					},
					"passes": map[string]interface{}{
						"type":        "boolean",
						"description": "Filter by pass status.",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Filter by category name.",
					},
					"random": map[string]interface{}{
						"type":        "boolean",
						"description": "Return features in random order.",
					},
				},
			},
		},
		Run: func(ctx context.Context, arguments json.RawMessage, _ ExecutionEnvironment) (string, error) {
			args, err := parseArguments(arguments)
			if err != nil {
				return "", err
			}

			opts := featureapi.ListOptions{}
			if limit, ok := intArg(args, "limit"); ok {
				opts.Limit = limit
			}
			if offset, ok := intArg(args, "offset"); ok {
				opts.Offset = offset
			}
			if passes, ok := boolArg(args, "passes"); ok {
				opts.Passes = &passes
			}
			opts.Category, _ = stringArg(args, "category")
			opts.Random, _ = boolArg(args, "random")

			result, err := client.List(ctx, opts)
			if err != nil {
				return "", err
			}
			return featureJSON(result)
		},
	})
}

func registerFeatureMarkPassing(reg *Registry, client *featureapi.Client) {
	reg.Register(Tool{
		Definition: llm.ToolDefinition{
			Name: "feature_mark_passing",
			Description: "Mark a feature as passing after verifying every one of its steps. " +
				"Only mark a feature passing when you have confirmed it works end to end.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"feature_id": map[string]interface{}{
						"type":        "integer",
						"description": "ID of the verified feature.",
					},
				},
				"required": []string{"feature_id"},
			},
		},
		Run: func(ctx context.Context, arguments json.RawMessage, _ ExecutionEnvironment) (string, error) {
			args, err := parseArguments(arguments)
			if err != nil {
				return "", err
			}
			id, ok := intArg(args, "feature_id")
			if !ok {
				return "", fmt.Errorf("feature_id is required")
			}

			f, err := client.SetPasses(ctx, int64(id), true)
			if errors.Is(err, feature.ErrNotFound) {
				return "", fmt.Errorf("feature %d not found", id)
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Feature %d (%q) marked as passing.", f.ID, f.Name), nil
		},
	})
}

func registerFeatureSkip(reg *Registry, client *featureapi.Client) {
	reg.Register(Tool{
		Definition: llm.ToolDefinition{
			Name: "feature_skip",
			Description: "Move a feature to the end of the queue when it cannot be implemented yet, " +
				"for example because it depends on features that do not exist. Use sparingly.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"feature_id": map[string]interface{}{
						"type":        "integer",
						"description": "ID of the feature to skip.",
					},
				},
				"required": []string{"feature_id"},
			},
		},
		Run: func(ctx context.Context, arguments json.RawMessage, _ ExecutionEnvironment) (string, error) {
			args, err := parseArguments(arguments)
			if err != nil {
				return "", err
			}
			id, ok := intArg(args, "feature_id")
			if !ok {
				return "", fmt.Errorf("feature_id is required")
			}

			result, err := client.Skip(ctx, int64(id))
			if errors.Is(err, feature.ErrNotFound) {
				return "", fmt.Errorf("feature %d not found", id)
			}
			if errors.Is(err, feature.ErrAlreadyPassing) {
				return "", fmt.Errorf("feature %d is already passing and cannot be skipped", id)
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (priority %d -> %d).", result.Message, result.OldPriority, result.NewPriority), nil
		},
	})
}

func registerFeatureBulkCreate(reg *Registry, client *featureapi.Client) {
	reg.Register(Tool{
		Definition: llm.ToolDefinition{
			Name: "feature_bulk_create",
			Description: "Create multiple features at once. Features are queued in the order given. " +
				"Each feature needs a category, name, description, and at least one verification step.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"features": map[string]interface{}{
						"type":        "array",
						"description": "Features to create, in priority order.",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"category":    map[string]interface{}{"type": "string"},
								"name":        map[string]interface{}{"type": "string"},
								"description": map[string]interface{}{"type": "string"},
								"steps": map[string]interface{}{
									"type":  "array",
									"items": map[string]interface{}{"type": "string"},
								},
							},
							"required": []string{"category", "name", "description", "steps"},
						},
					},
				},
				"required": []string{"features"},
			},
		},
		Run: func(ctx context.Context, arguments json.RawMessage, _ ExecutionEnvironment) (string, error) {
			var payload struct {
				Features []feature.Draft `json:"features"`
			}
			if err := json.Unmarshal(arguments, &payload); err != nil {
				return "", fmt.Errorf("invalid tool arguments: %w", err)
			}
			if len(payload.Features) == 0 {
				return "", fmt.Errorf("at least one feature is required")
			}

			created, err := client.BulkCreate(ctx, payload.Features)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Created %d features.", created), nil
		},
	})
}

func registerFeatureStats(reg *Registry, client *featureapi.Client) {
	reg.Register(Tool{
		Definition: llm.ToolDefinition{
			Name:        "feature_stats",
			Description: "Get feature completion statistics: passing count, total count, and percentage.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		Run: func(ctx context.Context, _ json.RawMessage, _ ExecutionEnvironment) (string, error) {
			stats, err := client.Stats(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d of %d features passing (%.1f%%).", stats.Passing, stats.Total, stats.Percentage), nil
		},
	})
}
