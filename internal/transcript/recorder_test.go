package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindbridge/peerchat-server/internal/model"
)

type fakeTranscripts struct {
	mu      sync.Mutex
	appends []model.AppendTranscriptParams
	err     error
}

func (f *fakeTranscripts) Append(ctx context.Context, params model.AppendTranscriptParams) (*model.TranscriptEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.appends = append(f.appends, params)
	return &model.TranscriptEntry{}, nil
}

func (f *fakeTranscripts) ListBySessionKey(ctx context.Context, sessionKey string) ([]model.TranscriptEntry, error) {
	return nil, nil
}

func TestRecord(t *testing.T) {
	t.Run("appends one chat row", func(t *testing.T) {
		transcripts := &fakeTranscripts{}
		recorder := NewRecorder(transcripts)

		recorder.Record("u1", "k1", "hello", nil)
		recorder.Close()

		require.Len(t, transcripts.appends, 1)
		row := transcripts.appends[0]
		assert.Equal(t, "u1", row.UserID)
		assert.Equal(t, model.SessionTypeChat, row.SessionType)
		assert.Equal(t, "k1", row.SessionKey)
		require.NotNil(t, row.UserMessage)
		assert.Equal(t, "hello", *row.UserMessage)
		assert.Nil(t, row.SystemResponse)
	})

	t.Run("system response becomes a chatbot row", func(t *testing.T) {
		transcripts := &fakeTranscripts{}
		recorder := NewRecorder(transcripts)

		response := "noted"
		recorder.Record("u1", "k1", "hello", &response)
		recorder.Close()

		require.Len(t, transcripts.appends, 2)
		assert.Equal(t, model.SessionTypeChat, transcripts.appends[0].SessionType)

		bot := transcripts.appends[1]
		assert.Equal(t, model.SessionTypeChatbot, bot.SessionType)
		assert.Nil(t, bot.UserMessage)
		require.NotNil(t, bot.SystemResponse)
		assert.Equal(t, "noted", *bot.SystemResponse)
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		transcripts := &fakeTranscripts{err: errors.New("store down")}
		recorder := NewRecorder(transcripts)

		response := "noted"
		recorder.Record("u1", "k1", "hello", &response)
		recorder.Close()

		assert.Empty(t, transcripts.appends)
	})
}
