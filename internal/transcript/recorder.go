// Package transcript is the fire-and-forget hook into the external
// transcript store. The relay path never waits on it and never sees its
// failures.
package transcript

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mindbridge/peerchat-server/internal/config"
	"github.com/mindbridge/peerchat-server/internal/model"
	"github.com/mindbridge/peerchat-server/internal/repository"
)

type Recorder struct {
	transcripts repository.TranscriptRepository

	// wg lets Close drain in-flight writes on shutdown.
	wg sync.WaitGroup
}

func NewRecorder(transcripts repository.TranscriptRepository) *Recorder {
	return &Recorder{transcripts: transcripts}
}

// Record appends the sender's message, plus a second row when a system
// response rode along with it (the bot-mediated bridge case). Writes happen
// on their own goroutine with their own deadline; failures are logged as
// warnings and otherwise swallowed.
func (r *Recorder) Record(userID, sessionKey, message string, systemResponse *string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), config.TranscriptWriteTimeout)
		defer cancel()

		if _, err := r.transcripts.Append(ctx, model.AppendTranscriptParams{
			UserID:      userID,
			SessionType: model.SessionTypeChat,
			SessionKey:  sessionKey,
			UserMessage: &message,
		}); err != nil {
			log.Warn().Err(err).
				Str("sessionKey", sessionKey).
				Str("userId", userID).
				Msg("transcript append failed")
		}

		if systemResponse == nil {
			return
		}

		if _, err := r.transcripts.Append(ctx, model.AppendTranscriptParams{
			UserID:         userID,
			SessionType:    model.SessionTypeChatbot,
			SessionKey:     sessionKey,
			SystemResponse: systemResponse,
		}); err != nil {
			log.Warn().Err(err).
				Str("sessionKey", sessionKey).
				Str("userId", userID).
				Msg("transcript system response append failed")
		}
	}()
}

// Close waits for in-flight writes to finish.
func (r *Recorder) Close() {
	r.wg.Wait()
}
