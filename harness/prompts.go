package harness

// initializerPrompt seeds an empty project: the session reads the project
// specification and fills the feature queue.
const initializerPrompt = `This project has no features in its database yet. Your job is to set up the feature queue, not to write application code.

1. Read the project specification. Look for app_spec.txt in the project directory; if it does not exist, derive the intent from README files and any existing code.
2. Break the specification down into small, independently verifiable features. Each feature needs a category, a short name, a description, and concrete verification steps a later session can follow.
3. Create all features in one call with feature_bulk_create, ordered so foundational work comes first.
4. Call feature_stats to confirm the queue was created.

Do not implement any features in this session. Do not mark anything passing.`

// codingPrompt drives one implementation session against the queue.
const codingPrompt = `Continue working on this project. Work the feature queue:

1. Call feature_next to get the highest-priority feature that is not passing.
2. Implement it. Read the relevant files first, keep changes minimal, and follow the project's existing style.
3. Verify every one of the feature's steps by running the code or its tests. Only after everything checks out, call feature_mark_passing.
4. If the feature is blocked on functionality that does not exist yet, call feature_skip with a quick note in your reasoning and move to the next feature.
5. Repeat until the session runs out of work or feature_next reports that all features are passing.

Occasionally pick a couple of passing features at random (feature_list with random=true, passes=true) and re-verify them to catch regressions.`
