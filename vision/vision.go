//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Package vision invokes vision-capable chat models through any
// OpenAI-compatible endpoint.
package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/scriptoria/paleobench/config"
)

// Response is the structured outcome of one model invocation. Expected
// failure modes land in Error rather than surfacing as a Go error, so one
// invocation always yields exactly one recordable outcome.
type Response struct {
	Text           string
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	Cost           float64
	LatencySeconds float64
	ModelLabel     string
	Error          string
}

// Params the invocation maps onto typed request fields; everything else in
// the model's parameter bag passes through to the request body untouched.
const (
	paramTemperature = "temperature"
	paramTopP        = "top_p"
	paramMaxTokens   = "max_tokens"
)

// Client evaluates models over the OpenAI chat-completions API.
type Client struct {
	client openai.Client
}

// NewClient creates a vision client. Without options the underlying SDK
// picks up OPENAI_API_KEY and the default endpoint from the environment.
func NewClient(opt ...Option) *Client {
	o := newOptions(opt...)
	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, o.requestOptions...)
	return &Client{client: openai.NewClient(clientOpts...)}
}

// Evaluate sends the prompts plus the image at imagePath to the model and
// returns the structured response. Provider and encoding failures are
// reported on Response.Error; the error return covers invalid arguments
// only.
func (c *Client) Evaluate(
	ctx context.Context,
	model *config.Model,
	imagePath string,
	prompts config.Prompts,
) (*Response, error) {
	if model == nil {
		return nil, errors.New("model is nil")
	}
	if imagePath == "" {
		return nil, errors.New("image path is empty")
	}

	data, mimeType, err := encodeImage(imagePath)
	if err != nil {
		return &Response{ModelLabel: model.Label, Error: fmt.Sprintf("encode image: %v", err)}, nil
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, data)

	request := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model.ID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(prompts.System),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							{
								OfText: &openai.ChatCompletionContentPartTextParam{
									Text: prompts.User,
								},
							},
							{
								OfImageURL: &openai.ChatCompletionContentPartImageParam{
									ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
										URL: dataURL,
									},
								},
							},
						},
					},
				},
			},
		},
	}
	requestOpts := applyParams(&request, model.Params)

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, request, requestOpts...)
	latency := round3(time.Since(start).Seconds())
	if err != nil {
		return &Response{ModelLabel: model.Label, LatencySeconds: latency, Error: err.Error()}, nil
	}
	if len(completion.Choices) == 0 {
		return &Response{ModelLabel: model.Label, LatencySeconds: latency, Error: "no choices in response"}, nil
	}

	usage := completion.Usage
	return &Response{
		Text:           completion.Choices[0].Message.Content,
		InputTokens:    int(usage.PromptTokens),
		OutputTokens:   int(usage.CompletionTokens),
		TotalTokens:    int(usage.TotalTokens),
		Cost:           invocationCost(model, int(usage.PromptTokens), int(usage.CompletionTokens)),
		LatencySeconds: latency,
		ModelLabel:     model.Label,
	}, nil
}

// applyParams maps the well-known parameter keys onto typed request fields
// and forwards the rest of the bag verbatim as JSON body fields.
func applyParams(request *openai.ChatCompletionNewParams, params map[string]any) []openaiopt.RequestOption {
	var opts []openaiopt.RequestOption
	for key, value := range params {
		switch key {
		case paramTemperature:
			if v, ok := asFloat(value); ok {
				request.Temperature = openai.Float(v)
				continue
			}
		case paramTopP:
			if v, ok := asFloat(value); ok {
				request.TopP = openai.Float(v)
				continue
			}
		case paramMaxTokens:
			if v, ok := asFloat(value); ok {
				request.MaxCompletionTokens = openai.Int(int64(v))
				continue
			}
		}
		opts = append(opts, openaiopt.WithJSONSet(key, value))
	}
	return opts
}

// invocationCost prices one call from the per-million-token rates on the
// model configuration. Unpriced models cost zero.
func invocationCost(model *config.Model, inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens)*model.InputCostPerMTok/1e6 +
		float64(outputTokens)*model.OutputCostPerMTok/1e6
	return math.Round(cost*1e6) / 1e6
}

func round3(v float64) float64 {
	return math.Round(v*1e3) / 1e3
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
