package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/infrastructure/browser/memdoc"
)

type staticDocs struct {
	doc output.DocumentPort
	err error
}

func (s staticDocs) Document(ctx context.Context) (output.DocumentPort, error) {
	return s.doc, s.err
}

type recordedTurn struct {
	text         string
	instructions string
}

type fakeConversation struct {
	turns []recordedTurn
	err   error
}

func (f *fakeConversation) SendUserTurn(ctx context.Context, text, instructions string) error {
	if f.err != nil {
		return f.err
	}
	f.turns = append(f.turns, recordedTurn{text: text, instructions: instructions})
	return nil
}

var errDocumentGone = errors.New("document gone")

func newDoc(t *testing.T, html string) *memdoc.Document {
	t.Helper()
	d, err := memdoc.New("https://example.com/page", html)
	require.NoError(t, err)
	return d
}
