// Package voicelive runs live voice conversations with a speech model.
//
// A Session is one backend connection. It encodes microphone chunks to
// PCM16, hands them to a Transport connection without blocking, and decodes
// the reply into ordered callbacks: audio chunks, transcript fragments,
// turn boundaries and barge-in. Every session ends with exactly one of
// OnClose and OnError. Failures carry a Kind (AuthRejected, QuotaExceeded,
// ...) and are never retried.
//
// An Engine wires a Session to the devices of a host: a capture.Source for
// the microphone, a playback.Scheduler and Renderer for the speaker, and a
// spectrum.Sampler for the visualizer. It merges transcript fragments into
// turns, records the reply for WAV export, and optionally archives a Record
// of the conversation in a kv.Store.
//
// Two transports are provided: GeminiTransport for the Gemini Live API and
// OpenAITransport for the OpenAI Realtime API.
//
// Basic usage:
//
//	t, err := voicelive.NewGeminiTransport(ctx, os.Getenv("GEMINI_API_KEY"))
//	if err != nil {
//		return err
//	}
//	eng := voicelive.NewEngine(t, voicelive.EngineConfig{Session: voicelive.DefaultConfig()},
//		voicelive.WithInput(mic),
//		voicelive.WithOutput(speaker),
//		voicelive.WithHost(voicelive.HostFuncs{
//			Transcript: func(turns []voicelive.Turn) { render(turns) },
//		}),
//	)
//	if err := eng.Start(ctx); err != nil {
//		return err
//	}
//	defer eng.Close()
//	<-eng.Done()
package voicelive
