// Package openairealtime is a websocket client for the OpenAI Realtime API,
// reduced to what a full-duplex voice conversation needs: session setup,
// streaming PCM16 input, and typed server events carrying audio deltas,
// transcripts and turn boundaries.
//
// # Connecting
//
//	client := openairealtime.NewClient(apiKey)
//	sess, err := client.Connect(ctx, openairealtime.ModelGPT4oRealtimePreview)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	err = sess.UpdateSession(&openairealtime.SessionConfig{
//	    Voice:        openairealtime.VoiceAlloy,
//	    Instructions: "You are a news anchor.",
//	    TurnDetection: &openairealtime.TurnDetection{
//	        Type: openairealtime.VADServerVAD,
//	    },
//	})
//
// # Streaming
//
// Input audio is PCM16, 24kHz, mono, little-endian:
//
//	err = sess.AppendAudio(pcm)
//
// Server events arrive in order through an iterator:
//
//	for ev, err := range sess.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    switch ev.Type {
//	    case openairealtime.EventTypeResponseAudioDelta:
//	        play(ev.Audio)
//	    case openairealtime.EventTypeResponseAudioTranscriptDelta:
//	        fmt.Print(ev.Delta)
//	    }
//	}
package openairealtime
