package callsession

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recorder accumulates a call's conversation data in memory: incoming audio,
// transcriptions, and spoken responses. Safe for concurrent use.
type Recorder struct {
	callID string

	mu             sync.Mutex
	incoming       [][]byte
	transcriptions []string
	responses      []recordedResponse
}

type recordedResponse struct {
	Text  string
	Audio []byte
}

// NewRecorder creates an empty Recorder for the given call.
func NewRecorder(callID string) *Recorder {
	return &Recorder{callID: callID}
}

// AddIncoming stores a copy of one received audio chunk.
func (r *Recorder) AddIncoming(chunk []byte) {
	c := make([]byte, len(chunk))
	copy(c, chunk)
	r.mu.Lock()
	r.incoming = append(r.incoming, c)
	r.mu.Unlock()
}

// AddTranscription stores one recognised utterance.
func (r *Recorder) AddTranscription(text string) {
	r.mu.Lock()
	r.transcriptions = append(r.transcriptions, text)
	r.mu.Unlock()
}

// AddResponse stores one spoken reply and its audio.
func (r *Recorder) AddResponse(text string, pcm []byte) {
	c := make([]byte, len(pcm))
	copy(c, pcm)
	r.mu.Lock()
	r.responses = append(r.responses, recordedResponse{Text: text, Audio: c})
	r.mu.Unlock()
}

// conversationArtifact is the on-disk JSON shape. Audio is base64 so the
// artifact stays a single self-contained text file.
type conversationArtifact struct {
	CallID         string             `json:"call_id"`
	Timestamp      string             `json:"timestamp"`
	Transcriptions []string           `json:"transcriptions"`
	Responses      []responseArtifact `json:"responses"`
	IncomingAudio  []string           `json:"incoming_audio"`
}

type responseArtifact struct {
	Text  string `json:"text"`
	Audio string `json:"audio"`
}

// ArtifactStore writes conversation artifacts into a directory, one JSON
// file per call named <call_id>_conversation_<timestamp>.json.
type ArtifactStore struct {
	dir string

	// now is swappable for tests.
	now func() time.Time
}

// NewArtifactStore creates the target directory if needed and returns a
// store writing into it.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("callsession: create artifact dir: %w", err)
	}
	return &ArtifactStore{dir: dir, now: time.Now}, nil
}

// Write serialises the recorder's contents to disk. Called once at session
// teardown; an error is reported but never fails the teardown.
func (a *ArtifactStore) Write(r *Recorder) error {
	r.mu.Lock()
	art := conversationArtifact{
		CallID:         r.callID,
		Timestamp:      a.now().Format("20060102_150405"),
		Transcriptions: append([]string(nil), r.transcriptions...),
		Responses:      make([]responseArtifact, 0, len(r.responses)),
		IncomingAudio:  make([]string, 0, len(r.incoming)),
	}
	for _, resp := range r.responses {
		art.Responses = append(art.Responses, responseArtifact{
			Text:  resp.Text,
			Audio: base64.StdEncoding.EncodeToString(resp.Audio),
		})
	}
	for _, chunk := range r.incoming {
		art.IncomingAudio = append(art.IncomingAudio, base64.StdEncoding.EncodeToString(chunk))
	}
	r.mu.Unlock()

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("callsession: marshal artifact: %w", err)
	}

	name := fmt.Sprintf("%s_conversation_%s.json", art.CallID, art.Timestamp)
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("callsession: write artifact: %w", err)
	}
	return nil
}
