package intent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/provider"
)

const systemPrompt = "You are an AI assistant that determines if a user's request is for generating a new image or editing an existing image. Analyze the prompt and respond with only 'new' or 'edit'."

// Classifier - maps a free-form prompt to new/edit with one gateway call
type Classifier struct {
	caller       provider.Caller
	model        string
	providerName string
}

// NewClassifier - classifier bound to a fixed model and provider
func NewClassifier(caller provider.Caller, modelName, providerName string) *Classifier {
	return &Classifier{caller: caller, model: modelName, providerName: providerName}
}

// Messages - the two-message exchange sent for prompt
func Messages(prompt string) []provider.Message {
	return []provider.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Determine if this request is for generating a NEW image or EDITING an existing image: '%s'. Respond with only 'new' or 'edit'.", prompt)},
	}
}

// Classify - never fails; anything but an exact new/edit answer resolves to new
func (c *Classifier) Classify(ctx context.Context, prompt string) model.Intent {
	resp, err := c.caller.Call(ctx, c.model, Messages(prompt), c.providerName, provider.Options{})
	if err != nil {
		if errors.Is(err, provider.ErrNoResult) {
			log.Printf("⚠️  [Intent] No result from %s, defaulting to new", c.model)
		} else {
			log.Printf("⚠️  [Intent] Classifier unavailable (%v), defaulting to new", err)
		}
		return model.IntentNew
	}

	answer := resp.Text()
	if intent, ok := model.ParseIntent(answer); ok {
		log.Printf("🔍 [Intent] Request type: %s", intent)
		return intent
	}
	log.Printf("⚠️  [Intent] Unrecognized answer %q, defaulting to new", answer)
	return model.IntentNew
}
