package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"shopledger/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

const defaultModel = shared.ChatModelGPT4o

type AgentService interface {
	InterpretCommand(ctx context.Context, naturalLanguage string, shopContext string) (*core.CommandProposal, error)
}

type Agent struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewAgent builds the interpreter. OPENAI_MODEL overrides the default model.
func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	model := shared.ResponsesModel(defaultModel)
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		model = shared.ResponsesModel(m)
	}
	return &Agent{client: &client, model: model}
}

const promptTemplate = `You are the assistant of a phone shop cashier.
Your goal is to interpret an instruction in natural language and propose exactly one shop operation.
Rules:
1. Use ONLY product codes, customer codes and document numbers from the context below.
2. Quantities are integer strings, amounts are exact decimal strings (e.g. "1500.00").
3. If anything needed is missing or ambiguous, use action "clarify" and ask one question.
4. Provide a confidence score (0.0-1.0).
5. Explain your reasoning.

Shop context:
%s

Instruction: %s`

// InterpretCommand maps a natural-language shop instruction ("sold 2 clear
// cases to Ayşe, she paid 1500 cash") onto a CommandProposal. The proposal is
// validated here but never executed; execution requires explicit confirmation
// through the application layer.
func (a *Agent) InterpretCommand(ctx context.Context, naturalLanguage string, shopContext string) (*core.CommandProposal, error) {
	schema, err := proposalSchema()
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(fmt.Sprintf(promptTemplate, shopContext, naturalLanguage)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "shop_command_proposal",
					Strict:      param.NewOpt(true),
					Schema:      schema,
					Description: param.NewOpt("A proposed phone shop operation or a clarification question"),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var proposal core.CommandProposal
	if err := json.Unmarshal([]byte(content), &proposal); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, fmt.Errorf("proposal validation failed: %w", err)
	}

	return &proposal, nil
}

// proposalSchema reflects CommandProposal into the strict JSON schema map the
// responses API expects.
func proposalSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(core.CommandProposal{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return schema, nil
}
