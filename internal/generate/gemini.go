package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyboard-studio/internal/domain"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

	textModel  = "gemini-3-flash-preview"
	imageModel = "gemini-2.5-flash-image"
	ttsModel   = "gemini-2.5-flash-preview-tts"
	videoModel = "veo-3.1-fast-generate-preview"
)

// Client implements all generation ports against the Gemini REST API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a production client. The endpoint override is used by
// tests and self-hosted proxies; empty means the public API.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

// NewClientWithHTTP builds a client with an injected http.Client.
func NewClientWithHTTP(apiKey, endpoint string, httpClient *http.Client) *Client {
	c := NewClient(apiKey, endpoint)
	if httpClient != nil {
		c.http = httpClient
	}
	return c
}

// SignedMediaURL combines a returned media reference with the access
// credential to form the final playable handle.
func (c *Client) SignedMediaURL(uri string) string {
	if uri == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "key=" + c.apiKey
}

// Wire types for the generateContent request/response shapes.

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type content struct {
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType   string        `json:"responseMimeType,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// firstText returns the first textual part of the first candidate.
func (r generateResponse) firstText() string {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// firstInline returns the first inline data blob of the first candidate.
func (r generateResponse) firstInline() (inlineData, bool) {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return *part.InlineData, true
			}
		}
	}
	return inlineData{}, false
}

// generateContent posts one request to model:generateContent.
func (c *Client) generateContent(ctx context.Context, model string, req generateRequest) (generateResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, model, c.apiKey)
	var resp generateResponse
	if err := c.postJSON(ctx, url, req, &resp); err != nil {
		return generateResponse{}, err
	}
	return resp, nil
}

// postJSON performs one JSON round trip with status checking.
func (c *Client) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation API status %d: %s", httpResp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// AnalyzeCharacters identifies the main characters of the script with a
// detailed visual description for downstream image prompts.
func (c *Client) AnalyzeCharacters(ctx context.Context, text string) ([]domain.Character, error) {
	prompt := "Identify the main characters (max 5) of the following text. " +
		"Write a VERY detailed visual description of each for an image model " +
		"(hair, eyes, clothing, age). Return ONLY a JSON array of objects " +
		"with \"name\" and \"description\".\n\nText:\n" + text

	resp, err := c.generateContent(ctx, textModel, generateRequest{
		Contents:         []content{{Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("identify characters: %w", err)
	}

	var wire []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(resp.firstText()), &wire); err != nil {
		return nil, fmt.Errorf("parse character list: %w", err)
	}

	characters := make([]domain.Character, 0, len(wire))
	for _, w := range wire {
		characters = append(characters, domain.Character{Name: w.Name, Description: w.Description})
	}
	return characters, nil
}

// DecomposeIntoScenes splits the script into ordered storyboard scenes.
func (c *Client) DecomposeIntoScenes(ctx context.Context, text string) ([]SceneSpec, error) {
	prompt := "You are an expert screenwriter and film director. Transform the " +
		"following novel text into a structured storyboard. Split it into logical " +
		"visual scenes. For each scene produce an array of \"parts\" where each " +
		"part has \"type\" (NARRATION for cinematic description, DIALOGUE for " +
		"literal character lines, INSTRUCTION for camera/lighting notes), an " +
		"optional \"speaker\", and \"text\". Return ONLY the JSON array.\n\nText:\n" + text

	resp, err := c.generateContent(ctx, textModel, generateRequest{
		Contents:         []content{{Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("decompose scenes: %w", err)
	}

	var wire []struct {
		Parts []struct {
			Type    string `json:"type"`
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		} `json:"parts"`
	}
	if err := json.Unmarshal([]byte(resp.firstText()), &wire); err != nil {
		return nil, fmt.Errorf("parse storyboard: %w", err)
	}

	specs := make([]SceneSpec, 0, len(wire))
	for _, w := range wire {
		parts := make([]domain.NarrationPart, 0, len(w.Parts))
		for _, p := range w.Parts {
			parts = append(parts, domain.NarrationPart{
				Kind:    domain.PartKind(p.Type),
				Speaker: p.Speaker,
				Text:    p.Text,
			})
		}
		specs = append(specs, SceneSpec{Parts: parts})
	}
	return specs, nil
}

// GenerateImage runs the two-step art-director chain: a text model writes
// a style-anchored prompt, then the image model renders it.
func (c *Client) GenerateImage(ctx context.Context, parts []domain.NarrationPart, style StyleConfig) (ImageResult, error) {
	promptResp, err := c.generateContent(ctx, textModel, generateRequest{
		Contents: []content{{Parts: []contentPart{{Text: buildImagePromptRequest(parts, style)}}}},
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("compose image prompt: %w", err)
	}
	imagePrompt := strings.TrimSpace(promptResp.firstText())
	if imagePrompt == "" {
		return ImageResult{}, fmt.Errorf("image prompt generation returned no text")
	}

	imageResp, err := c.generateContent(ctx, imageModel, generateRequest{
		Contents: []content{{Parts: []contentPart{{Text: imagePrompt}}}},
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("render image: %w", err)
	}

	inline, ok := imageResp.firstInline()
	if !ok {
		return ImageResult{}, fmt.Errorf("image generation returned no media")
	}
	data, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return ImageResult{}, fmt.Errorf("decode image payload: %w", err)
	}

	return ImageResult{Data: data, MIMEType: inline.MIMEType, Prompt: imagePrompt}, nil
}

// GenerateNarrationSegment synthesizes one part with the given voice and
// returns raw 24 kHz mono 16-bit PCM samples.
func (c *Client) GenerateNarrationSegment(ctx context.Context, text, voice string) (AudioSegment, error) {
	resp, err := c.generateContent(ctx, ttsModel, generateRequest{
		Contents: []content{{Parts: []contentPart{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voice}},
			},
		},
	})
	if err != nil {
		return AudioSegment{}, fmt.Errorf("synthesize segment: %w", err)
	}

	inline, ok := resp.firstInline()
	if !ok {
		return AudioSegment{}, fmt.Errorf("speech synthesis returned no audio")
	}
	pcm, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return AudioSegment{}, fmt.Errorf("decode audio payload: %w", err)
	}

	return AudioSegment{PCM: pcm, SampleRate: 24000}, nil
}

// SubmitVideoJob starts an asynchronous animation job from the scene's
// narration text and returns its opaque operation handle.
func (c *Client) SubmitVideoJob(ctx context.Context, parts []domain.NarrationPart, aspect domain.AspectRatio) (VideoJob, error) {
	action := actionSummary(parts, 500)
	payload := map[string]any{
		"instances": []map[string]any{{
			"prompt": "Cinematic high-quality animation: " + action +
				". Maintain strictly consistent character design and lighting. " +
				"Fluid professional motion, filmic look.",
		}},
		"parameters": map[string]any{
			"sampleCount": 1,
			"resolution":  "720p",
			"aspectRatio": string(aspect),
		},
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", c.endpoint, videoModel, c.apiKey)
	var resp struct {
		Name string `json:"name"`
	}
	if err := c.postJSON(ctx, url, payload, &resp); err != nil {
		return VideoJob{}, fmt.Errorf("submit video job: %w", err)
	}
	if resp.Name == "" {
		return VideoJob{}, fmt.Errorf("video submission returned no operation name")
	}
	return VideoJob{Name: resp.Name}, nil
}

// PollVideoJob checks one operation; the caller owns the retry cadence.
func (c *Client) PollVideoJob(ctx context.Context, job VideoJob) (VideoPoll, error) {
	url := fmt.Sprintf("%s/%s?key=%s", c.endpoint, job.Name, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return VideoPoll{}, fmt.Errorf("build poll request: %w", err)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return VideoPoll{}, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return VideoPoll{}, fmt.Errorf("read poll response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return VideoPoll{}, fmt.Errorf("poll status %d: %s", httpResp.StatusCode, truncate(string(data), 200))
	}

	var resp struct {
		Done     bool `json:"done"`
		Response struct {
			GenerateVideoResponse struct {
				GeneratedSamples []struct {
					Video struct {
						URI string `json:"uri"`
					} `json:"video"`
				} `json:"generatedSamples"`
			} `json:"generateVideoResponse"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return VideoPoll{}, fmt.Errorf("decode poll response: %w", err)
	}
	if !resp.Done {
		return VideoPoll{}, nil
	}

	samples := resp.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 || samples[0].Video.URI == "" {
		return VideoPoll{}, fmt.Errorf("video job finished without media")
	}
	return VideoPoll{Done: true, MediaURI: samples[0].Video.URI}, nil
}

// buildImagePromptRequest writes the art-director instruction that keeps
// every frame in one uniform style.
func buildImagePromptRequest(parts []domain.NarrationPart, style StyleConfig) string {
	var sb strings.Builder
	sb.WriteString("TASK: Act as an Art Director for a consistent visual series. ")
	sb.WriteString("Create a highly detailed image generation prompt for the scene below ")
	sb.WriteString("while maintaining a strictly UNIFORM STYLE across all frames.\n\n")
	fmt.Fprintf(&sb, "GLOBAL PROJECT STYLE: %q\n", strings.ToUpper(style.ImageStyle))
	fmt.Fprintf(&sb, "ARTISTIC DIRECTION & PALETTE: %q\n\n", style.ArtDirection)
	sb.WriteString("MANDATORY STYLE ANCHORS:\n")
	fmt.Fprintf(&sb, "1. Every prompt MUST start with: \"A high-quality masterpiece in %s style, "+
		"part of a consistent narrative series, with %s lighting and colors.\"\n",
		style.ImageStyle, style.ArtDirection)
	sb.WriteString("2. Characters MUST be identical to these descriptions:\n")
	for _, char := range style.Characters {
		fmt.Fprintf(&sb, "%s: %s\n", char.Name, char.Description)
	}
	sb.WriteString("\nSCENE DESCRIPTION:\n")
	for _, part := range parts {
		sb.WriteString(part.Text)
		sb.WriteString(" ")
	}
	sb.WriteString("\n\nTECHNICAL CONSTRAINTS:\n")
	sb.WriteString("- Language: English.\n")
	sb.WriteString("- Details: Professional cinematic composition, 8k, detailed textures.\n")
	if style.IncludeTextInImage {
		sb.WriteString("- Note: Reserve space for subtitles if dialogue is present.\n")
	} else {
		sb.WriteString("- NO TEXT, NO LOGOS, NO WATERMARKS.\n")
	}
	sb.WriteString("- ONLY return the generated prompt string.")
	return sb.String()
}

// actionSummary flattens spoken parts into a bounded motion description.
func actionSummary(parts []domain.NarrationPart, limit int) string {
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Kind == domain.PartInstruction {
			continue
		}
		texts = append(texts, part.Text)
	}
	joined := strings.Join(texts, " ")
	if len(joined) > limit {
		joined = joined[:limit]
	}
	return joined
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
