// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// DefaultTopics are the research areas scored when no topics file is
// configured.
var DefaultTopics = []types.Topic{
	{
		Name: "Agentic Artificial Intelligence",
		Description: "Agentic AI papers study autonomous systems where AI agents powered by large language models " +
			"perceive goals, decompose complex tasks into subtasks, use external tools and APIs, make decisions, and " +
			"execute multi-step workflows with minimal human intervention. Keywords: agentic workflows; autonomous " +
			"agents; multi-agent systems; orchestration; planning; tool use; function calling; code execution; " +
			"reflection; self-critique; ReAct; plan-and-execute; coding agents; research assistants.",
	},
	{
		Name: "Proximal Policy Optimization",
		Description: "Proximal Policy Optimization papers study a policy gradient reinforcement learning algorithm " +
			"that achieves stable policy updates through a clipped surrogate objective, using actor-critic " +
			"architecture with advantage estimation and multiple epochs of minibatch updates, evaluated on continuous " +
			"control, Atari, and fine-tuning large language models with reinforcement learning from human feedback. " +
			"Keywords: PPO; clipped objective; probability ratio; GAE; trust region; TRPO; KL penalty; RLHF; " +
			"reward model; InstructGPT.",
	},
	{
		Name: "Reinforcement Learning",
		Description: "Reinforcement Learning papers study how agents learn sequential decision-making policies " +
			"through trial-and-error interaction with an environment to maximize cumulative reward, formalized as " +
			"Markov Decision Processes, using value-based methods like Q-learning and DQN, policy gradient methods, " +
			"or actor-critic methods. Keywords: MDP; POMDP; Bellman equation; temporal-difference; exploration; " +
			"replay buffer; model-based RL; offline RL; multi-agent RL; bandits; imitation learning; sim-to-real.",
	},
	{
		Name: "Reasoning Models",
		Description: "Reasoning models papers study AI systems, particularly large language models, designed to " +
			"perform multi-step logical deduction, mathematical problem-solving, and planning using chain-of-thought, " +
			"tree-of-thoughts, self-verification, and explicit step-by-step decomposition, evaluated on mathematical, " +
			"logical, commonsense, and multi-hop reasoning benchmarks. Keywords: CoT; self-consistency; scratchpad; " +
			"process supervision; step-level rewards; GSM8K; MATH; theorem proving; System 2 thinking.",
	},
	{
		Name: "Inference Time Scaling",
		Description: "Inference time scaling papers study techniques that allocate additional computation at test " +
			"time to improve accuracy, including best-of-n sampling with verifier-based selection, self-consistency " +
			"voting, iterative refinement, beam search and Monte Carlo tree search over reasoning paths, and adaptive " +
			"compute allocation. Keywords: test-time compute; verifier; process reward models; accuracy-compute " +
			"tradeoff; inference scaling laws; pass-at-k; speculative decoding; test-time adaptation.",
	},
}

// topicsFile is the on-disk shape of a topics file.
type topicsFile struct {
	Topics []types.Topic `yaml:"topics"`
}

// LoadTopics returns the topics in path, or DefaultTopics when path is
// empty. Names must be unique and every topic needs a description.
func LoadTopics(path string) ([]types.Topic, error) {
	if path == "" {
		return DefaultTopics, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topics file: %w", err)
	}

	var f topicsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing topics file %s: %w", path, err)
	}
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("topics file %s defines no topics", path)
	}

	seen := make(map[string]bool, len(f.Topics))
	for i, t := range f.Topics {
		if t.Name == "" || t.Description == "" {
			return nil, fmt.Errorf("topics file %s: topic %d needs a name and a description", path, i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("topics file %s: duplicate topic %q", path, t.Name)
		}
		seen[t.Name] = true
	}
	return f.Topics, nil
}

// TopicNames returns the names of topics in order.
func TopicNames(topics []types.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Name
	}
	return out
}
