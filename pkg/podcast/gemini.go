package podcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
)

const (
	DefaultGeminiScriptModel = "gemini-2.5-flash"
	DefaultGeminiSpeechModel = "gemini-2.5-flash-preview-tts"
)

// geminiSpeechFormat is the output of the Gemini speech models.
var geminiSpeechFormat = pcm.L16Mono24K

var (
	_ ScriptWriter = (*GeminiWriter)(nil)
	_ Synthesizer  = (*GeminiVoice)(nil)
)

// GeminiWriter writes scripts with Gemini structured output.
type GeminiWriter struct {
	Client *genai.Client
	Model  string
}

func (w *GeminiWriter) WriteScript(ctx context.Context, req Request) (*Script, error) {
	schema, err := scriptSchema()
	if err != nil {
		return nil, err
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(systemPrompt(req))}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiSchema(schema),
	}
	resp, err := w.Client.Models.GenerateContent(ctx, orDefault(w.Model, DefaultGeminiScriptModel),
		genai.Text(userPrompt(req)), cfg)
	if err != nil {
		return nil, unwrapGemini(err)
	}
	cand, err := firstCandidate(resp)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return parseScript(sb.String())
}

// GeminiVoice voices scripts with a Gemini speech model. Two hosts use
// multi-speaker mode; one host uses a single voice.
type GeminiVoice struct {
	Client *genai.Client
	Model  string
}

func (v *GeminiVoice) Synthesize(ctx context.Context, s *Script, hosts []Host) (pcm.Format, []byte, error) {
	speech := &genai.SpeechConfig{}
	switch len(hosts) {
	case 1:
		speech.VoiceConfig = prebuilt(hosts[0].Voice)
	case 2:
		multi := &genai.MultiSpeakerVoiceConfig{}
		for _, h := range hosts {
			multi.SpeakerVoiceConfigs = append(multi.SpeakerVoiceConfigs, &genai.SpeakerVoiceConfig{
				Speaker:     h.Name,
				VoiceConfig: prebuilt(h.Voice),
			})
		}
		speech.MultiSpeakerVoiceConfig = multi
	default:
		return pcm.Format{}, nil, fmt.Errorf("%w: got %d", ErrHosts, len(hosts))
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig:       speech,
	}
	prompt := "Read this podcast conversation aloud in a warm, lively news tone:\n\n" + s.Transcript()
	resp, err := v.Client.Models.GenerateContent(ctx, orDefault(v.Model, DefaultGeminiSpeechModel),
		genai.Text(prompt), cfg)
	if err != nil {
		return pcm.Format{}, nil, unwrapGemini(err)
	}
	cand, err := firstCandidate(resp)
	if err != nil {
		return pcm.Format{}, nil, err
	}
	var audio []byte
	for _, p := range cand.Content.Parts {
		if p.InlineData != nil {
			audio = append(audio, p.InlineData.Data...)
		}
	}
	if len(audio)%2 != 0 {
		audio = audio[:len(audio)-1]
	}
	return geminiSpeechFormat, audio, nil
}

func prebuilt(voice string) *genai.VoiceConfig {
	return &genai.VoiceConfig{PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice}}
}

func firstCandidate(resp *genai.GenerateContentResponse) (*genai.Candidate, error) {
	if len(resp.Candidates) == 0 {
		return nil, errors.New("podcast: gemini returned no candidates")
	}
	c := resp.Candidates[0]
	if c.FinishReason != "" && c.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("podcast: gemini finished with %s", c.FinishReason)
	}
	if c.Content == nil {
		return nil, errors.New("podcast: gemini returned no content")
	}
	return c, nil
}

func unwrapGemini(err error) error {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if inner := ae.Unwrap(); inner != nil {
			return fmt.Errorf("podcast: gemini: %w", inner)
		}
	}
	return fmt.Errorf("podcast: gemini: %w", err)
}

// geminiSchema converts a JSON schema to the subset Gemini accepts.
func geminiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	gs := &genai.Schema{
		Description: s.Description,
		Format:      s.Format,
		Required:    s.Required,
		Items:       geminiSchema(s.Items),
	}
	for _, e := range s.Enum {
		gs.Enum = append(gs.Enum, fmt.Sprint(e))
	}
	typ := s.Type
	for _, t := range s.Types {
		if t == "null" {
			gs.Nullable = genai.Ptr(true)
		} else if typ == "" {
			typ = t
		}
	}
	switch typ {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	if len(s.Properties) > 0 {
		gs.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, p := range s.Properties {
			gs.Properties[k] = geminiSchema(p)
		}
	}
	return gs
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
