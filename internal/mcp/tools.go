package mcp

import "github.com/mark3labs/mcp-go/mcp"

// rankExamplesTool defines the rank_examples MCP tool.
var rankExamplesTool = mcp.NewTool("rank_examples",
	mcp.WithDescription("Find the annotated example conversations most relevant to a situation. Returns formatted examples with their relevance scores."),
	mcp.WithString("message",
		mcp.Description("What the user said about their conversation, or the last message received"),
	),
	mcp.WithString("platform",
		mcp.Description("Messaging platform key, e.g. tinder, hinge, whatsapp"),
	),
	mcp.WithString("stage",
		mcp.Description("Conversation stage"),
		mcp.Enum("opener", "ongoing", "ghosting", "date_proposal", "post_date"),
	),
	mcp.WithString("goal",
		mcp.Description("What the user is hoping for, e.g. dating"),
	),
	mcp.WithString("style",
		mcp.Description("Preferred tone, e.g. playful"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of examples to return (default 3)"),
	),
)

// platformContextTool defines the platform_context MCP tool.
var platformContextTool = mcp.NewTool("platform_context",
	mcp.WithDescription("Get the conventions and common mistakes for a messaging platform."),
	mcp.WithString("platform",
		mcp.Required(),
		mcp.Description("Platform key, e.g. tinder"),
	),
)

// listPrinciplesTool defines the list_principles MCP tool.
var listPrinciplesTool = mcp.NewTool("list_principles",
	mcp.WithDescription("List the coaching principles replies should cite by ID."),
	mcp.WithString("category",
		mcp.Description("Only list principles in this category"),
		mcp.Enum("style", "timing", "mindset", "content", "logistics"),
	),
)

// nextQuestionTool defines the next_question MCP tool.
var nextQuestionTool = mcp.NewTool("next_question",
	mcp.WithDescription("Decide which clarifying question to ask next given what is known about a conversation. Pass \"skip\" for fields the user declined to answer."),
	mcp.WithString("platform", mcp.Description("Platform the user gave")),
	mcp.WithString("relationship", mcp.Description("Who the user is talking to")),
	mcp.WithString("stage", mcp.Description("Conversation stage the user gave")),
	mcp.WithString("goal", mcp.Description("The user's goal")),
	mcp.WithString("style", mcp.Description("The user's preferred tone")),
	mcp.WithString("detected_platform", mcp.Description("Platform detected from a screenshot")),
	mcp.WithString("detected_stage", mcp.Description("Stage detected from a screenshot")),
)
