// Package router routes generation requests to the backend that owns the
// requested model.
//
// # Architecture
//
//   - Registry: model id to backend lookup, built from each backend's catalog
//   - Client and its extension interfaces: the contract a backend implements
//   - Dispatcher: resolves, validates, tracks and delegates every call
//   - Error: the tagged failure type every Dispatcher operation returns
//
// # Quick Start
//
//	d := router.NewDispatcher(router.Credentials{
//	    router.OpenAI: os.Getenv("OPENAI_API_KEY"),
//	}, router.GollmFactory, router.WithTracker(monitor))
//
//	text, err := d.Chat(ctx, router.ChatRequest{Model: "gpt-4o-mini", Prompt: "Hello"})
//	switch {
//	case router.IsKind(err, router.ModelNotSupported):
//	    // unknown model
//	case err != nil:
//	    // ...
//	case text == router.NoContent:
//	    // the model answered with nothing
//	}
//
// # Capabilities
//
// Every client chats. Embedding, vision, transcription and speech are
// optional: a client opts in by implementing EmbeddingClient, VisionClient,
// TranscriptionClient or SpeechClient. The set is computed once when the
// client is registered and checked by membership on every call.
package router
