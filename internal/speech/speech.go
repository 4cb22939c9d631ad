// Package speech turns a mono PCM WAV file into text using a hosted
// recognition service.
package speech

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned when the service heard audio but no words.
var ErrNoSpeech = errors.New("no speech detected")

// Recognizer transcribes a WAV file. Any error other than ErrNoSpeech means
// the service could not be reached or refused the request.
type Recognizer interface {
	Recognize(ctx context.Context, wavPath string) (string, error)
	Name() string
}
