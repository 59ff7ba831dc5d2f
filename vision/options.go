//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package vision

import openaiopt "github.com/openai/openai-go/option"

type options struct {
	apiKey         string
	baseURL        string
	requestOptions []openaiopt.RequestOption
}

func newOptions(opt ...Option) *options {
	o := &options{}
	for _, fn := range opt {
		fn(o)
	}
	return o
}

// Option configures the vision client.
type Option func(*options)

// WithAPIKey overrides the API key read from the environment.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithRequestOptions appends raw SDK request options, applied after the
// key and URL.
func WithRequestOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.requestOptions = append(o.requestOptions, opts...)
	}
}
