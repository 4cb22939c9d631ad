package models

// TranscriptStatus classifies how a transcription attempt ended
type TranscriptStatus string

const (
	TranscriptOK                    TranscriptStatus = "ok"
	TranscriptOpenFailed            TranscriptStatus = "open_failed"
	TranscriptNoAudio               TranscriptStatus = "no_audio"
	TranscriptNoSpeech              TranscriptStatus = "no_speech"
	TranscriptRecognizerUnavailable TranscriptStatus = "recognizer_unavailable"
	TranscriptFailed                TranscriptStatus = "failed"
)

// User-facing texts used in place of a transcript when transcription fails.
const (
	MsgOpenFailedPrefix       = "Error: Could not open video file."
	MsgNoAudio                = "Error: No audio track found in video. Please check your microphone settings."
	MsgNoSpeech               = "Audio was recorded, but no speech was detected."
	MsgRecognizerUnavailable  = "Error connecting to Google Speech Recognition service."
	MsgProcessingFailedPrefix = "Error processing video:"
)

// Transcript is the result of transcribing a recorded answer.
// Text is what gets evaluated, whether the transcription worked or not.
type Transcript struct {
	Text     string
	Status   TranscriptStatus
	Err      error
	Language string
}

// OK reports whether Text is real recognized speech.
func (t Transcript) OK() bool {
	return t.Status == TranscriptOK
}
