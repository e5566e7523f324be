package agent

// CanonicalTreeConfig supplies the tool instances and model handles the
// canonical tree (spec §4.4) is wired from. Each field is an agent.Tool
// (or nil to omit that tool, e.g. admin tools in a deployment that leaves
// them disabled). SearchKnowledge and FetchDocuments are accepted but
// BuildCanonicalTree attaches them to no agent.
type CanonicalTreeConfig struct {
	DefaultModel     ModelHandle
	MaintenanceModel ModelHandle // falls back to DefaultModel if empty

	FetchElements    Tool
	CanvasOperations Tool
	SearchKnowledge  Tool
	FetchDocuments   Tool
	AdminTools       Tool
}

// BuildCanonicalTree constructs spec §4.4's canonical agent tree:
//
//	orchestrator
//	  ├─ chat_summarizer        (tools: fetch_elements)
//	  ├─ canvas_manager         (tools: canvas ops + fetch_elements)
//	  ├─ maintenance_agent      (tools: admin ops)
//	  └─ disney_facilitator     (sub: dreamer, realist, critic; tool: canvas_manager)
//	        ├─ dreamer
//	        ├─ realist
//	        └─ critic
//
// Only canvas_manager is marked AsTool, so it is the only sub-agent the
// Runner can call: orchestrator's and disney_facilitator's LLMs see it as a
// tool stub. chat_summarizer, maintenance_agent, disney_facilitator,
// dreamer, realist and critic are plain sub-agents; they are part of the
// tree and its name index, but the Runner has no path that hands a parent's
// turn to a sub-agent not marked AsTool.
func BuildCanonicalTree(cfg CanonicalTreeConfig) *Agent {
	model := cfg.DefaultModel
	maintenanceModel := cfg.MaintenanceModel
	if maintenanceModel == "" {
		maintenanceModel = model
	}

	chatSummarizer := &Agent{
		Name:        "chat_summarizer",
		Model:       model,
		Description: "Summarizes recent canvas history for a chat.",
		Instruction: "You summarize the recent conversation history for this chat using fetch_elements. Be concise and neutral.",
		Tools:       nonNilTools(cfg.FetchElements),
	}

	canvasManager := &Agent{
		Name:        "canvas_manager",
		Model:       model,
		Description: "Reads and edits the chat's canvas: frames, notes, tasks, messages.",
		Instruction: "You manage this chat's canvas using the canvas_operations and fetch_elements tools. Always resolve the current canvas before acting; never guess ids.",
		Tools:       nonNilTools(cfg.CanvasOperations, cfg.FetchElements),
		AsTool:      true,
	}

	maintenanceAgent := &Agent{
		Name:        "maintenance_agent",
		Model:       maintenanceModel,
		Description: "Performs operator-gated maintenance actions: version checks, codebase updates, restarts, log retrieval.",
		Instruction: "You perform maintenance actions only when explicitly asked by an operator. Refuse ambiguous requests.",
		Tools:       nonNilTools(cfg.AdminTools),
	}

	dreamer := &Agent{
		Name:        "dreamer",
		Model:       model,
		Description: "Generates ambitious, unconstrained ideas.",
		Instruction: "You are the dreamer: propose bold ideas without worrying about feasibility yet.",
	}
	realist := &Agent{
		Name:        "realist",
		Model:       model,
		Description: "Evaluates ideas for practicality and feasibility.",
		Instruction: "You are the realist: assess what the dreamer proposed for practicality, cost, and effort.",
	}
	critic := &Agent{
		Name:        "critic",
		Model:       model,
		Description: "Critiques ideas for flaws and risks.",
		Instruction: "You are the critic: identify flaws, risks, and missing considerations in what dreamer and realist produced.",
	}

	disneyFacilitator := &Agent{
		Name:        "disney_facilitator",
		Model:       model,
		Description: "Runs a dreamer/realist/critic brainstorming session, recording outcomes to the canvas.",
		Instruction: "You facilitate a structured brainstorm: transfer to dreamer, then realist, then critic, in that order, then use canvas_manager to record the outcome.",
		SubAgents:   []*Agent{dreamer, realist, critic, canvasManager},
	}

	orchestrator := &Agent{
		Name:        "orchestrator",
		Model:       model,
		Description: "Routes each chat turn to the right specialist agent.",
		Instruction: "You are the top-level orchestrator for this chat. Delegate to chat_summarizer, canvas_manager, maintenance_agent, or disney_facilitator as the user's request requires; otherwise answer directly.",
		SubAgents:   []*Agent{chatSummarizer, canvasManager, maintenanceAgent, disneyFacilitator},
	}
	return orchestrator
}

func nonNilTools(tools ...Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
